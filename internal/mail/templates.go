// Package mail renders the outbound email bodies. Templates are typed and
// parsed once; html/template escapes every interpolated field, so customer
// input can never inject markup into the messages.
package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"carwash/internal/models"
)

type templateData struct {
	BusinessName string
	CustomerName string
	Email        string
	Service      string
	Date         string
	Time         string
	Phone        string
	Notes        string
	BookingID    string
	AdminMessage template.HTML // pre-escaped, newlines already converted
}

var customerReceiptTmpl = template.Must(template.New("customer_receipt").Parse(`
    <div style="font-family: Arial, sans-serif; line-height: 1.6;">
      <h2>Hi {{.CustomerName}},</h2>
      <p>We have received your booking request. Here are the details:</p>
      <ul>
        <li><b>Service:</b> {{.Service}}</li>
        <li><b>Date:</b> {{.Date}}</li>
        <li><b>Time:</b> {{.Time}}</li>
        <li><b>Phone:</b> {{.Phone}}</li>
      </ul>
      {{if .Notes}}<p><b>Notes:</b> {{.Notes}}</p>{{end}}
      <p><b>Booking ID:</b> {{.BookingID}}</p>
      <p>We will contact you shortly to confirm your appointment.</p>
      <p>&mdash; {{.BusinessName}}</p>
    </div>
  `))

var businessNoticeTmpl = template.Must(template.New("business_notice").Parse(`
    <div style="font-family: Arial, sans-serif; line-height: 1.6;">
      <h2>New booking received</h2>
      <ul>
        <li><b>Customer:</b> {{.CustomerName}}</li>
        <li><b>Email:</b> {{.Email}}</li>
        <li><b>Phone:</b> {{.Phone}}</li>
        <li><b>Service:</b> {{.Service}}</li>
        <li><b>Date:</b> {{.Date}}</li>
        <li><b>Time:</b> {{.Time}}</li>
      </ul>
      {{if .Notes}}<p><b>Notes:</b> {{.Notes}}</p>{{end}}
      <p><b>Booking ID:</b> {{.BookingID}}</p>
    </div>
  `))

var confirmationTmpl = template.Must(template.New("confirmation").Parse(`
    <div style="font-family: Arial, sans-serif; line-height: 1.6;">
      <h2>Hi {{.CustomerName}},</h2>
      <p>Your service has been <b>successfully confirmed</b>.</p>
      {{if .AdminMessage}}<p><b>Message from our team:</b><br/>{{.AdminMessage}}</p>{{end}}
      <h3>Booking details</h3>
      <ul>
        <li><b>Service:</b> {{.Service}}</li>
        <li><b>Date:</b> {{.Date}}</li>
        <li><b>Time:</b> {{.Time}}</li>
        <li><b>Phone:</b> {{.Phone}}</li>
      </ul>
      <p>If you need to reschedule, reply to this email.</p>
      <p>&mdash; {{.BusinessName}}</p>
    </div>
  `))

// Builder renders mail messages for one business.
type Builder struct {
	businessName string
}

func NewBuilder(businessName string) *Builder {
	return &Builder{businessName: businessName}
}

// CustomerReceipt acknowledges a new booking request to the customer.
func (b *Builder) CustomerReceipt(booking *models.Booking) (models.MailMessage, error) {
	data := b.data(booking)
	if data.CustomerName == "" {
		data.CustomerName = "there"
	}
	html, err := render(customerReceiptTmpl, data)
	if err != nil {
		return models.MailMessage{}, err
	}
	return models.MailMessage{
		Subject: fmt.Sprintf("Booking received — %s", b.businessName),
		HTML:    html,
	}, nil
}

// BusinessNotice alerts the business inbox about a new booking.
func (b *Builder) BusinessNotice(booking *models.Booking) (models.MailMessage, error) {
	data := b.data(booking)
	if data.CustomerName == "" {
		data.CustomerName = "-"
	}
	if data.Email == "" {
		data.Email = "-"
	}
	html, err := render(businessNoticeTmpl, data)
	if err != nil {
		return models.MailMessage{}, err
	}

	name := booking.CustomerName
	if name == "" {
		name = "New Customer"
	}
	return models.MailMessage{
		Subject: fmt.Sprintf("New booking — %s (%s %s)", name, booking.Date, booking.Time),
		HTML:    html,
	}, nil
}

// Confirmation tells the customer the booking was confirmed, embedding the
// operator message when one was left.
func (b *Builder) Confirmation(booking *models.Booking) (models.MailMessage, error) {
	data := b.data(booking)
	if data.CustomerName == "" {
		data.CustomerName = "there"
	}

	if msg := strings.TrimSpace(booking.AdminMessage); msg != "" {
		escaped := template.HTMLEscapeString(msg)
		data.AdminMessage = template.HTML(strings.ReplaceAll(escaped, "\n", "<br/>"))
	}

	html, err := render(confirmationTmpl, data)
	if err != nil {
		return models.MailMessage{}, err
	}
	return models.MailMessage{
		Subject: fmt.Sprintf("Your service is confirmed — %s", b.businessName),
		HTML:    html,
	}, nil
}

func (b *Builder) data(booking *models.Booking) templateData {
	phone := booking.Phone
	if phone == "" {
		phone = "-"
	}
	return templateData{
		BusinessName: b.businessName,
		CustomerName: booking.CustomerName,
		Email:        booking.Email,
		Service:      booking.Service,
		Date:         booking.Date,
		Time:         booking.Time,
		Phone:        phone,
		Notes:        booking.Notes,
		BookingID:    booking.ID,
	}
}

func render(tmpl *template.Template, data templateData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}
