// Package render turns reminder letter requests into printable PDF documents
package render

import (
	"bytes"
	"embed"
	"html/template"
	"time"

	"arledger/internal/core/dunning"
	"arledger/internal/core/money"
	perr "arledger/internal/platform/errors"
	"arledger/internal/services/dunning/domain"
)

//go:embed templates/letter.html
var templates embed.FS

// Sender is the letterhead and the DIN 5008 return address line
type Sender struct {
	Name  string
	Lines []string
	Place string
}

// ReturnAddress is the one line sender shown above the recipient window
func (s Sender) ReturnAddress() string {
	out := s.Name
	for _, l := range s.Lines {
		if out != "" {
			out += ", "
		}
		out += l
	}
	return out
}

var bodies = map[dunning.Level][]string{
	0: {
		"bei der Durchsicht unserer Buchhaltung ist uns aufgefallen, dass der Rechnungsbetrag für die unten aufgeführten Rechnungen noch nicht bei uns eingegangen ist.",
		"Wir bitten Sie, die offenen Beträge innerhalb von 14 Tagen auf unser Konto zu überweisen.",
	},
	1: {
		"trotz unserer Zahlungserinnerung haben wir bisher keinen Zahlungseingang für die unten aufgeführten Rechnungen feststellen können.",
		"Wir fordern Sie hiermit auf, den ausstehenden Betrag innerhalb von 10 Tagen nach Erhalt dieses Schreibens zu überweisen.",
	},
	2: {
		"trotz mehrmaliger Zahlungsaufforderungen ist der ausstehende Rechnungsbetrag bis heute nicht bei uns eingegangen.",
		"Dies ist unsere letzte Zahlungsaufforderung vor Einleitung rechtlicher Schritte.",
	},
}

var subjects = map[dunning.Level]string{
	2: "2. Mahnung - LETZTE ZAHLUNGSAUFFORDERUNG",
}

type letterView struct {
	Sender    Sender
	Recipient []string
	Date      string
	Subject   string
	Final     bool
	Greeting  string
	Body      []string
	Items     []itemView
	Total     string
}

type itemView struct {
	Number string
	Date   string
	Amount string
}

var letterTmpl = template.Must(template.ParseFS(templates, "templates/letter.html"))

// HTML renders the cover letter of req as a standalone HTML document
func HTML(sender Sender, req domain.LetterRequest) (string, error) {
	if !req.Level.Valid() {
		return "", perr.InvalidArgf("render: invalid level %d", req.Level)
	}
	if len(req.Items) == 0 {
		return "", perr.InvalidArgf("render: letter without invoices")
	}
	issued := req.IssuedAt
	if issued.IsZero() {
		issued = time.Now()
	}
	v := letterView{
		Sender:    sender,
		Recipient: recipient(req),
		Date:      issued.Format("02.01.2006"),
		Subject:   req.Title,
		Final:     req.Level == 2,
		Greeting:  req.Greeting,
		Body:      bodies[req.Level],
	}
	if s, ok := subjects[req.Level]; ok {
		v.Subject = s
	}
	if v.Subject == "" {
		v.Subject = req.Level.Name()
	}
	if sender.Place != "" {
		v.Date = sender.Place + ", " + v.Date
	}
	var total money.Cents
	for _, it := range req.Items {
		v.Items = append(v.Items, itemView{
			Number: it.InvoiceNumber,
			Date:   it.Date.Format("02.01.2006"),
			Amount: money.Cents(it.AmountCents).Format() + " €",
		})
		total += money.Cents(it.AmountCents)
	}
	v.Total = total.Format() + " €"

	var buf bytes.Buffer
	if err := letterTmpl.Execute(&buf, v); err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeUnknown, "render: execute letter template")
	}
	return buf.String(), nil
}

func recipient(req domain.LetterRequest) []string {
	head := req.CustomerName
	if req.Salutation != "" {
		head = req.Salutation + " " + req.CustomerName
	}
	lines := []string{head}
	for _, l := range []string{req.Street, req.City} {
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
