// Package render формирует печатные представления счетов.
package render

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"

	"github.com/mkotelnikov/invoicekeeper/internal/models"
)

//go:embed templates/invoice.html.tmpl
var invoiceTemplate string

// InvoiceRenderer рендерит счет в печатное представление.
type InvoiceRenderer interface {
	Render(invoice *models.Invoice, client *models.Client, prefs *models.Preferences) ([]byte, error)
}

// invoicePage - данные, передаваемые в шаблон счета.
type invoicePage struct {
	Invoice    *models.Invoice
	Client     *models.Client
	DateFormat string
}

type htmlRenderer struct {
	tmpl *template.Template
}

// NewHTMLRenderer создает рендерер счетов в HTML на основе встроенного шаблона.
func NewHTMLRenderer() (InvoiceRenderer, error) {
	tmpl, err := template.New("invoice").Funcs(template.FuncMap{
		"money": func(amount float64, currency string) string {
			return fmt.Sprintf("%.2f %s", amount, currency)
		},
	}).Parse(invoiceTemplate)
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора шаблона счета: %w", err)
	}
	return &htmlRenderer{tmpl: tmpl}, nil
}

// Render формирует HTML-страницу счета. Формат дат берется из настроек
// пользователя; при их отсутствии используется ISO-формат.
func (r *htmlRenderer) Render(invoice *models.Invoice, client *models.Client, prefs *models.Preferences) ([]byte, error) {
	dateFormat := "2006-01-02"
	if prefs != nil && prefs.DateFormat != "" {
		dateFormat = prefs.DateFormat
	}

	var buf bytes.Buffer
	err := r.tmpl.Execute(&buf, invoicePage{
		Invoice:    invoice,
		Client:     client,
		DateFormat: dateFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка рендеринга счета '%s': %w", invoice.Number, err)
	}
	return buf.Bytes(), nil
}
