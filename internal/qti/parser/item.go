package parser

import (
	"encoding/xml"
	"io/fs"
	"path"
	"strings"
)

type assessmentItem struct {
	XMLName      xml.Name            `xml:"assessmentItem"`
	Identifier   string              `xml:"identifier,attr"`
	Title        string              `xml:"title,attr"`
	Body         itemBody            `xml:"itemBody"`
	ResponseDecl responseDeclaration `xml:"responseDeclaration"`
	Feedback     []modalFeedback     `xml:"modalFeedback"`
}
type itemBody struct {
	RawXML string `xml:",innerxml"`
}
type responseDeclaration struct {
	Identifier  string `xml:"identifier,attr"`
	Cardinality string `xml:"cardinality,attr"` // single|multiple
	Correct     struct {
		Values []string `xml:"value"`
	} `xml:"correctResponse"`
}
type modalFeedback struct {
	RawXML string `xml:",innerxml"`
}

type InteractionType string

const (
	InteractionChoiceSingle InteractionType = "choice_single"
	InteractionChoiceMulti  InteractionType = "choice_multi"
	InteractionOther        InteractionType = "other"
)

type ParsedItem struct {
	ID        string
	Title     string
	Prompt    string
	Image     string // first <img src> in the prompt, resolved against the package root
	Kind      InteractionType
	Choices   []Choice
	AnswerKey []string // correct choice identifiers
	Feedback  string
}

type Choice struct {
	ID   string
	Text string
}

// ParseItem reads one item document. Only choice interactions are
// understood; anything else comes back as InteractionOther.
func ParseItem(fsys fs.FS, href string) (ParsedItem, error) {
	b, err := fs.ReadFile(fsys, href)
	if err != nil {
		return ParsedItem{}, err
	}
	var it assessmentItem
	if err := xml.Unmarshal(b, &it); err != nil {
		return ParsedItem{}, err
	}

	prompt, img := textAndImage(promptPart(it.Body.RawXML))
	pi := ParsedItem{
		ID:     it.Identifier,
		Title:  it.Title,
		Prompt: prompt,
		Kind:   InteractionOther,
	}
	if img != "" {
		pi.Image = path.Join(path.Dir(href), img)
	}
	if len(it.Feedback) > 0 {
		pi.Feedback, _ = textAndImage(it.Feedback[0].RawXML)
	}

	if strings.Contains(strings.ToLower(it.Body.RawXML), "<choiceinteraction") {
		pi.Kind = InteractionChoiceSingle
		if it.ResponseDecl.Cardinality == "multiple" {
			pi.Kind = InteractionChoiceMulti
		}
		pi.Choices = extractChoices(it.Body.RawXML)
		pi.AnswerKey = it.ResponseDecl.Correct.Values
	}
	return pi, nil
}

// promptPart is the body up to the first interaction.
func promptPart(inner string) string {
	l := strings.ToLower(inner)
	if idx := strings.Index(l, "interaction"); idx > 0 {
		if lt := strings.LastIndex(l[:idx], "<"); lt >= 0 {
			return inner[:lt]
		}
	}
	return inner
}

// textAndImage flattens markup to its text and picks up the first image.
func textAndImage(fragment string) (string, string) {
	var sb strings.Builder
	var img string
	dec := xml.NewDecoder(strings.NewReader("<x>" + fragment + "</x>"))
	dec.Strict = false
	for {
		t, err := dec.Token()
		if err != nil {
			break
		}
		switch tok := t.(type) {
		case xml.CharData:
			sb.Write(tok)
		case xml.StartElement:
			if strings.EqualFold(tok.Name.Local, "img") && img == "" {
				img = attr(tok, "src")
			}
		}
	}
	return strings.Join(strings.Fields(sb.String()), " "), img
}

func extractChoices(inner string) []Choice {
	out := []Choice{}
	dec := xml.NewDecoder(strings.NewReader(inner))
	for {
		t, err := dec.Token()
		if err != nil {
			break
		}
		se, ok := t.(xml.StartElement)
		if !ok || !strings.EqualFold(se.Name.Local, "simpleChoice") {
			continue
		}
		var body struct {
			Inner string `xml:",innerxml"`
		}
		if err := dec.DecodeElement(&body, &se); err == nil {
			text, _ := textAndImage(body.Inner)
			out = append(out, Choice{ID: attr(se, "identifier"), Text: text})
		}
	}
	return out
}

func attr(se xml.StartElement, name string) string {
	for _, a := range se.Attr {
		if strings.EqualFold(a.Name.Local, name) {
			return a.Value
		}
	}
	return ""
}
