package qti

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-quiz/internal/exam"
	"github.com/mind-engage/mindengage-quiz/internal/qti/export"
	"github.com/mind-engage/mindengage-quiz/internal/qti/parser"
)

func TestExportImportRoundTrip(t *testing.T) {
	in := []exam.Question{
		{
			Text:          "Which is a prime & odd?",
			Options:       map[exam.Label]string{exam.LabelA: "2", exam.LabelB: "3", exam.LabelC: "4"},
			CorrectAnswer: exam.AnswerKey{exam.LabelB},
			Justification: "2 is even.",
			Image:         "questions/primes.png",
		},
		{
			Text:          "Pick the vowels",
			Options:       map[exam.Label]string{exam.LabelA: "a", exam.LabelB: "b", exam.LabelC: "e", exam.LabelD: "<d>"},
			CorrectAnswer: exam.AnswerKey{exam.LabelA, exam.LabelC},
		},
	}
	media := func(name string) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader("png:" + name)), nil
	}
	zipped, err := export.BuildPackage(in, media)
	require.NoError(t, err)

	fsys, err := parser.OpenZip(bytes.NewReader(zipped), int64(len(zipped)))
	require.NoError(t, err)
	got, err := Import(fsys)
	require.NoError(t, err)
	require.Len(t, got.Questions, 2)
	assert.Empty(t, got.Skipped)
	assert.Equal(t, "q001", got.Title)

	q := got.Questions[0]
	assert.Equal(t, in[0].Text, q.Text)
	assert.Equal(t, in[0].Options, q.Options)
	assert.Equal(t, in[0].CorrectAnswer, q.CorrectAnswer)
	assert.Equal(t, "2 is even.", q.Justification)
	assert.Equal(t, "questions/primes.png", q.Image)
	assert.Equal(t, "q001", q.Source)

	q = got.Questions[1]
	assert.Equal(t, in[1].Options, q.Options)
	assert.Equal(t, in[1].CorrectAnswer, q.CorrectAnswer)
	assert.True(t, q.IsMulti())
}

const manifest = `<?xml version="1.0"?>
<manifest><resources>
  <resource identifier="i1" type="imsqti_item_xmlv2p1" href="items/choice.xml"/>
  <resource identifier="i2" type="imsqti_item_xmlv2p1" href="items/text.xml"/>
</resources></manifest>`

const choiceItem = `<assessmentItem identifier="choice-1" title="Capitals">
  <responseDeclaration identifier="RESPONSE" cardinality="single">
    <correctResponse><value>paris</value></correctResponse>
  </responseDeclaration>
  <itemBody>
    <p>Capital of <b>France</b>?</p>
    <p><img src="../img/map.png"/></p>
    <choiceInteraction responseIdentifier="RESPONSE" maxChoices="1">
      <simpleChoice identifier="rome">Rome</simpleChoice>
      <simpleChoice identifier="paris">Paris</simpleChoice>
    </choiceInteraction>
  </itemBody>
</assessmentItem>`

const textItem = `<assessmentItem identifier="text-1" title="Spell it">
  <itemBody><p>Spell cat</p><textEntryInteraction responseIdentifier="RESPONSE"/></itemBody>
</assessmentItem>`

func TestImportMapsChoiceIdentifiersToLabels(t *testing.T) {
	fsys := fstest.MapFS{
		"imsmanifest.xml":  {Data: []byte(manifest)},
		"items/choice.xml": {Data: []byte(choiceItem)},
		"items/text.xml":   {Data: []byte(textItem)},
	}
	got, err := Import(fsys)
	require.NoError(t, err)
	assert.Equal(t, "choice", got.Title)
	assert.Equal(t, []string{"text-1"}, got.Skipped)
	require.Len(t, got.Questions, 1)

	q := got.Questions[0]
	assert.Equal(t, "Capital of France?", q.Text)
	assert.Equal(t, "img/map.png", q.Image)
	assert.Equal(t, map[exam.Label]string{exam.LabelA: "Rome", exam.LabelB: "Paris"}, q.Options)
	assert.Equal(t, exam.AnswerKey{exam.LabelB}, q.CorrectAnswer)
}

func TestImportWithoutManifest(t *testing.T) {
	_, err := Import(fstest.MapFS{})
	require.ErrorIs(t, err, parser.ErrNoManifest)
}

func TestMapToQuestionsSkipsUnmappableItems(t *testing.T) {
	items := []parser.ParsedItem{
		{ID: "six", Kind: parser.InteractionChoiceSingle, Choices: make([]parser.Choice, 6)},
		{ID: "badkey", Kind: parser.InteractionChoiceSingle,
			Choices: []parser.Choice{{ID: "x", Text: "x"}}, AnswerKey: []string{"y"}},
		{ID: "ok", Title: "fallback title", Kind: parser.InteractionChoiceSingle,
			Choices: []parser.Choice{{ID: "x", Text: "x"}}, AnswerKey: []string{"x"}},
	}
	got := MapToQuestions(items)
	assert.Equal(t, []string{"six", "badkey"}, got.Skipped)
	require.Len(t, got.Questions, 1)
	assert.Equal(t, "fallback title", got.Questions[0].Text)
}
