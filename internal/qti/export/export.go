// Package export writes question sets as QTI 2.1 content packages.
package export

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/mind-engage/mindengage-quiz/internal/exam"
)

// BuildPackage zips one choiceInteraction item per question plus the
// manifest. Option labels become choice identifiers. fetchMedia, if set,
// supplies question images to embed; missing media is left out.
func BuildPackage(questions []exam.Question, fetchMedia func(path string) (io.ReadCloser, error)) ([]byte, error) {
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	mf := imsManifest{
		Xmlns:     "http://www.imsglobal.org/xsd/imscp_v1p1",
		Resources: []imsResource{},
	}
	for i, q := range questions {
		id := fmt.Sprintf("q%03d", i+1)
		itemName := id + ".xml"
		res := imsResource{
			Identifier: id,
			Type:       "imsqti_item_xmlv2p1",
			Href:       itemName,
			Files:      []imsFile{{Href: itemName}},
		}
		if q.Image != "" && fetchMedia != nil {
			if err := addMedia(zw, q.Image, fetchMedia); err == nil {
				res.Files = append(res.Files, imsFile{Href: q.Image})
			} else {
				q.Image = ""
			}
		}
		mf.Resources = append(mf.Resources, res)
		w, err := zw.Create(itemName)
		if err != nil {
			return nil, err
		}
		if _, err := io.WriteString(w, buildItemXML(id, q)); err != nil {
			return nil, err
		}
	}

	mfw, err := zw.Create("imsmanifest.xml")
	if err != nil {
		return nil, err
	}
	b, err := xml.MarshalIndent(mf, "", "  ")
	if err != nil {
		return nil, err
	}
	_, _ = mfw.Write([]byte(xml.Header))
	_, _ = mfw.Write(b)

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func addMedia(zw *zip.Writer, name string, fetch func(string) (io.ReadCloser, error)) error {
	rc, err := fetch(name)
	if err != nil {
		return err
	}
	defer rc.Close()
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, rc)
	return err
}

type imsManifest struct {
	XMLName   xml.Name      `xml:"manifest"`
	Xmlns     string        `xml:"xmlns,attr,omitempty"`
	Resources []imsResource `xml:"resources>resource"`
}
type imsResource struct {
	Identifier string    `xml:"identifier,attr"`
	Type       string    `xml:"type,attr"`
	Href       string    `xml:"href,attr"`
	Files      []imsFile `xml:"file"`
}
type imsFile struct {
	Href string `xml:"href,attr"`
}

func buildItemXML(id string, q exam.Question) string {
	card, maxChoices := "single", 1
	if q.IsMulti() {
		card, maxChoices = "multiple", 0
	}
	var choices strings.Builder
	for _, l := range q.OptionLabels() {
		fmt.Fprintf(&choices, "\n      <simpleChoice identifier=%q>%s</simpleChoice>", string(l), esc(q.Options[l]))
	}
	var correct strings.Builder
	for _, l := range q.CorrectAnswer {
		fmt.Fprintf(&correct, "<value>%s</value>", l)
	}
	prompt := "<p>" + esc(q.Text) + "</p>"
	if q.Image != "" {
		prompt += "\n    <p><img src=\"" + esc(q.Image) + "\" alt=\"\"/></p>"
	}
	var feedback string
	if q.Justification != "" {
		feedback = fmt.Sprintf("\n  <modalFeedback outcomeIdentifier=\"FEEDBACK\" showHide=\"show\" identifier=\"SOLUTION\">%s</modalFeedback>", esc(q.Justification))
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<assessmentItem identifier="%s" title="%s" adaptive="false" timeDependent="false" xmlns="http://www.imsglobal.org/xsd/imsqti_v2p1">
  <responseDeclaration identifier="RESPONSE" cardinality="%s" baseType="identifier">
    <correctResponse>%s</correctResponse>
  </responseDeclaration>
  <itemBody>
    %s
    <choiceInteraction responseIdentifier="RESPONSE" shuffle="false" maxChoices="%d">%s
    </choiceInteraction>
  </itemBody>%s
</assessmentItem>`,
		id, esc(q.Source), card, correct.String(), prompt, maxChoices, choices.String(), feedback,
	)
}

func esc(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
