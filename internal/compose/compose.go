// Package compose renders the WhatsApp messages sent for each customer intent.
// Output depends only on its arguments.
package compose

import (
	"errors"
	"fmt"
	"strings"

	"jetroc/internal/domain"
	"jetroc/internal/money"
	"jetroc/internal/validate"
)

type Kind string

const (
	KindOrder  Kind = "order"
	KindSell   Kind = "sell"
	KindTrade  Kind = "trade"
	KindRepair Kind = "repair"
)

var Kinds = []Kind{KindOrder, KindSell, KindTrade, KindRepair}

const (
	Shop = "JeTroc.ci"
	// NotSpecified stands in for any optional field left blank.
	NotSpecified = "Non spécifié"
	Separator    = "---"
)

var ErrProductRequired = errors.New("compose: intent needs a product")

// NeedsProduct reports whether messages of kind k are about a catalog product.
func (k Kind) NeedsProduct() bool { return k == KindOrder || k == KindTrade }

func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

type Order struct {
	FirstName string `form:"first_name"`
	LastName  string `form:"last_name"`
	Phone     string `form:"phone"`
	Address   string `form:"address"`
	Color     string `form:"color"`
	Notes     string `form:"notes"`
}

type Sell struct {
	Name        string `form:"name"`
	Phone       string `form:"phone"`
	Brand       string `form:"brand"`
	Model       string `form:"model"`
	Description string `form:"description"`
	AskingPrice string `form:"asking_price"`
}

type Trade struct {
	Phone            string `form:"phone"`
	Brand            string `form:"brand"`
	Model            string `form:"model"`
	Description      string `form:"description"`
	AdditionalAmount string `form:"additional_amount"`
}

type Repair struct {
	Phone       string `form:"phone"`
	Description string `form:"description"`
}

// Brands is the suggestion list shown on the sell and trade forms.
var Brands = []string{
	"Apple", "Samsung", "Huawei", "Xiaomi", "Oppo", "Vivo", "OnePlus",
	"Google", "Sony", "Nokia", "Motorola", "LG", "Tecno", "Infinix", "Itel", "Autre",
}

// FieldNames lists the form fields read for kind k.
func FieldNames(k Kind) []string {
	switch k {
	case KindOrder:
		return []string{"first_name", "last_name", "phone", "address", "color", "notes"}
	case KindSell:
		return []string{"name", "phone", "brand", "model", "description", "asking_price"}
	case KindTrade:
		return []string{"phone", "brand", "model", "description", "additional_amount"}
	case KindRepair:
		return []string{"phone", "description"}
	}
	return nil
}

// Compose renders the message for kind from raw form fields. Order and Trade
// need the product they are about.
func Compose(kind Kind, fields map[string]string, p *domain.Product) (string, error) {
	f := func(name string) string { return fields[name] }
	switch kind {
	case KindOrder:
		if p == nil {
			return "", ErrProductRequired
		}
		return OrderMessage(Order{
			FirstName: f("first_name"), LastName: f("last_name"), Phone: f("phone"),
			Address: f("address"), Color: f("color"), Notes: f("notes"),
		}, *p)
	case KindSell:
		return SellMessage(Sell{
			Name: f("name"), Phone: f("phone"), Brand: f("brand"), Model: f("model"),
			Description: f("description"), AskingPrice: f("asking_price"),
		})
	case KindTrade:
		if p == nil {
			return "", ErrProductRequired
		}
		return TradeMessage(Trade{
			Phone: f("phone"), Brand: f("brand"), Model: f("model"),
			Description: f("description"), AdditionalAmount: f("additional_amount"),
		}, *p)
	case KindRepair:
		return RepairMessage(Repair{Phone: f("phone"), Description: f("description")})
	}
	return "", fmt.Errorf("compose: unknown intent %q", kind)
}

func OrderMessage(o Order, p domain.Product) (string, error) {
	o = Order{
		FirstName: strings.TrimSpace(o.FirstName), LastName: strings.TrimSpace(o.LastName),
		Phone: strings.TrimSpace(o.Phone), Address: strings.TrimSpace(o.Address),
		Color: strings.TrimSpace(o.Color), Notes: strings.TrimSpace(o.Notes),
	}
	verr := domain.NewValidationError()
	required(verr, "first_name", o.FirstName)
	required(verr, "last_name", o.LastName)
	required(verr, "address", o.Address)
	phone(verr, "phone", o.Phone)
	if err := verr.OrNil(); err != nil {
		return "", err
	}

	var b builder
	b.line("🛍️ *NOUVELLE COMMANDE - " + Shop + "*")
	b.blank()
	b.line("📱 *Produit:* " + p.Name)
	b.line("💰 *Prix:* " + money.FormatXOF(p.Price))
	b.blank()
	b.line("👤 *Client:*")
	b.line("• Nom: " + o.LastName + " " + o.FirstName)
	b.line("• Téléphone: " + o.Phone)
	b.line("• Adresse: " + o.Address)
	b.blank()
	b.line("🎨 *Couleur souhaitée:* " + orNotSpecified(o.Color))
	b.blank()
	b.line("📝 *Informations supplémentaires:*")
	b.line(orNotSpecified(o.Notes))
	b.footer("_Commande passée via " + Shop + "_")
	return b.String(), nil
}

func SellMessage(s Sell) (string, error) {
	s = Sell{
		Name: strings.TrimSpace(s.Name), Phone: strings.TrimSpace(s.Phone),
		Brand: strings.TrimSpace(s.Brand), Model: strings.TrimSpace(s.Model),
		Description: strings.TrimSpace(s.Description), AskingPrice: strings.TrimSpace(s.AskingPrice),
	}
	verr := domain.NewValidationError()
	required(verr, "name", s.Name)
	phone(verr, "phone", s.Phone)
	required(verr, "brand", s.Brand)
	required(verr, "model", s.Model)
	required(verr, "description", s.Description)
	price, _ := amount(verr, "asking_price", s.AskingPrice, true)
	if err := verr.OrNil(); err != nil {
		return "", err
	}

	var b builder
	b.line("💰 *VENTE DE TÉLÉPHONE - " + Shop + "*")
	b.blank()
	b.line("👤 *Vendeur:* " + s.Name)
	b.line("📞 *Contact:* " + s.Phone)
	b.blank()
	b.line("📱 *Téléphone à vendre:*")
	b.line("• Marque: " + s.Brand)
	b.line("• Modèle: " + s.Model)
	b.line("• Prix souhaité: " + money.FormatXOF(price))
	b.blank()
	b.line("📝 *Description:*")
	b.line(s.Description)
	b.footer("_Demande de vente via "+Shop+"_", "📷 *Prochaine étape:* Envoi des photos du téléphone")
	return b.String(), nil
}

func TradeMessage(t Trade, p domain.Product) (string, error) {
	t = Trade{
		Phone: strings.TrimSpace(t.Phone), Brand: strings.TrimSpace(t.Brand),
		Model: strings.TrimSpace(t.Model), Description: strings.TrimSpace(t.Description),
		AdditionalAmount: strings.TrimSpace(t.AdditionalAmount),
	}
	verr := domain.NewValidationError()
	required(verr, "brand", t.Brand)
	required(verr, "model", t.Model)
	required(verr, "description", t.Description)
	phone(verr, "phone", t.Phone)
	extra, _ := amount(verr, "additional_amount", t.AdditionalAmount, false)
	if err := verr.OrNil(); err != nil {
		return "", err
	}

	var b builder
	b.line("🔄 *DEMANDE DE TROC - " + Shop + "*")
	b.blank()
	b.line("📱 *Téléphone souhaité:*")
	b.line("• " + p.Name)
	b.line("• Prix: " + money.FormatXOF(p.Price))
	b.blank()
	b.line("📱 *Mon téléphone à troquer:*")
	b.line("• Marque: " + t.Brand)
	b.line("• Modèle: " + t.Model)
	b.line("• Description: " + t.Description)
	b.blank()
	b.line("💰 *Montant supplémentaire:* " + money.FormatXOF(extra))
	b.blank()
	b.line("📞 *Contact:* " + t.Phone)
	b.footer("_Demande de troc via " + Shop + "_")
	return b.String(), nil
}

func RepairMessage(r Repair) (string, error) {
	r = Repair{Phone: strings.TrimSpace(r.Phone), Description: strings.TrimSpace(r.Description)}
	verr := domain.NewValidationError()
	required(verr, "description", r.Description)
	phone(verr, "phone", r.Phone)
	if err := verr.OrNil(); err != nil {
		return "", err
	}

	var b builder
	b.line("🔧 *DEMANDE DE RÉPARATION - " + Shop + "*")
	b.blank()
	b.line("📱 *Description du problème:*")
	b.line(r.Description)
	b.blank()
	b.line("📞 *Numéro WhatsApp du client:* " + r.Phone)
	b.footer(
		"_Service ouvert 7j/7 et 24h/24 - Réparation dans un délai très rapide_",
		"_Demande de réparation via "+Shop+"_",
	)
	return b.String(), nil
}

// DirectMessage is the one-line opener used by the "WhatsApp direct" links,
// which skip the form.
func DirectMessage(kind Kind, p *domain.Product) (string, error) {
	if kind.NeedsProduct() && p == nil {
		return "", ErrProductRequired
	}
	switch kind {
	case KindOrder:
		return fmt.Sprintf("Bonjour %s, je suis intéressé(e) par le %s au prix de %s. Pouvez-vous me donner plus d'informations ?",
			Shop, p.Name, money.FormatXOF(p.Price)), nil
	case KindTrade:
		return fmt.Sprintf("Bonjour %s, je souhaite troquer mon téléphone contre le %s. Pouvez-vous m'expliquer le processus ?",
			Shop, p.Name), nil
	case KindSell:
		return "Bonjour " + Shop + ", je souhaite vendre mon téléphone. Pouvez-vous m'expliquer le processus ?", nil
	case KindRepair:
		return "Bonjour " + Shop + ", je souhaite faire réparer mon téléphone. Pouvez-vous m'expliquer le processus ?", nil
	}
	return "", fmt.Errorf("compose: unknown intent %q", kind)
}

// ContactMessage opens a general enquiry from the contact page.
func ContactMessage() string {
	return "Bonjour " + Shop + ", j'aimerais avoir plus d'informations sur vos services."
}

func orNotSpecified(s string) string {
	if s == "" {
		return NotSpecified
	}
	return s
}

func required(verr *domain.ValidationError, field, v string) {
	if v == "" {
		verr.Add(field, "required")
	}
}

func phone(verr *domain.ValidationError, field, v string) {
	if v == "" {
		verr.Add(field, "required")
		return
	}
	if _, ok := validate.Phone(v); !ok {
		verr.Add(field, "not a phone number")
	}
}

// amount parses an XOF amount. A blank optional amount is zero.
func amount(verr *domain.ValidationError, field, v string, mandatory bool) (int64, bool) {
	if v == "" {
		if mandatory {
			verr.Add(field, "required")
			return 0, false
		}
		return 0, true
	}
	n, ok := money.ParseAmount(v)
	if !ok || n < 0 {
		verr.Add(field, "must be a non-negative whole amount")
		return 0, false
	}
	return n, true
}

type builder struct{ strings.Builder }

func (b *builder) line(s string) {
	b.WriteString(s)
	b.WriteByte('\n')
}

func (b *builder) blank() { b.WriteByte('\n') }

// footer writes the separator followed by the signature lines; the message
// does not end with a newline.
func (b *builder) footer(lines ...string) {
	b.blank()
	b.WriteString(Separator)
	for _, l := range lines {
		b.WriteByte('\n')
		b.WriteString(l)
	}
}
