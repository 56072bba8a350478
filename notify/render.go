package notify

import (
	"bytes"
	"embed"
	htmltemplate "html/template"
	"text/template"
	"time"

	"checkout-fulfillment/config"
	models "checkout-fulfillment/model"
)

// PurchaseMessage is the thank-you line of the purchase confirmation.
const PurchaseMessage = "Thank you for purchasing your product. You will receive further updates soon."

//go:embed templates/*.tmpl
var templateFS embed.FS

// Renderer turns notification data into email messages.
type Renderer struct {
	site config.SiteConfig

	purchaseHTML *htmltemplate.Template
	purchaseText *template.Template
	detailsText  *template.Template
}

func NewRenderer(site config.SiteConfig) (*Renderer, error) {
	r := &Renderer{site: site}
	var err error
	if r.purchaseHTML, err = htmltemplate.ParseFS(templateFS, "templates/purchase_confirmation.html.tmpl"); err != nil {
		return nil, err
	}
	if r.purchaseText, err = template.ParseFS(templateFS, "templates/purchase_confirmation.txt.tmpl"); err != nil {
		return nil, err
	}
	if r.detailsText, err = template.ParseFS(templateFS, "templates/order_details.txt.tmpl"); err != nil {
		return nil, err
	}
	return r, nil
}

type purchaseData struct {
	FirstName    string
	Message      string
	OrderID      int64
	SupportEmail string
	CompanyName  string
	WebsiteURL   string
	Year         int
}

// PurchaseConfirmation renders the email sent once a payment is received.
func (r *Renderer) PurchaseConfirmation(user models.User, orderID int64) (Message, error) {
	name := user.FirstName
	if name == "" {
		name = "there"
	}
	data := purchaseData{
		FirstName:    name,
		Message:      PurchaseMessage,
		OrderID:      orderID,
		SupportEmail: r.site.SupportEmail,
		CompanyName:  r.site.CompanyName,
		WebsiteURL:   r.site.WebsiteURL,
		Year:         time.Now().Year(),
	}

	var html, text bytes.Buffer
	if err := r.purchaseHTML.Execute(&html, data); err != nil {
		return Message{}, err
	}
	if err := r.purchaseText.Execute(&text, data); err != nil {
		return Message{}, err
	}
	return Message{
		To:      user.Email,
		ToName:  user.FirstName,
		Subject: "Message from " + r.site.CompanyName,
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}

type detailsData struct {
	OrderID        int64
	Total          string
	Date           string
	AdditionalInfo string
	SupportEmail   string
}

// OrderDetails renders the plain-text order summary requested from the payment-success page.
func (r *Renderer) OrderDetails(user models.User, order models.Order) (Message, error) {
	info := order.AdditionalInfo
	if info == "" {
		info = "N/A"
	}
	data := detailsData{
		OrderID:        order.ID,
		Total:          order.Total.StringFixed(2),
		Date:           order.Date.Format("Jan 2, 2006"),
		AdditionalInfo: info,
		SupportEmail:   r.site.SupportEmail,
	}

	var text bytes.Buffer
	if err := r.detailsText.Execute(&text, data); err != nil {
		return Message{}, err
	}
	return Message{
		To:      user.Email,
		ToName:  user.FirstName,
		Subject: "Thanks for your order!",
		Text:    text.String(),
	}, nil
}
