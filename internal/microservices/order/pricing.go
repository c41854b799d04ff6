package order

import (
	"context"
	"fmt"
	"strings"

	"restaurant-assistant/internal/config"
	"restaurant-assistant/internal/domain"
	"restaurant-assistant/internal/microservices/menu"
)

const maxSuggestions = 3

// Pricer turns requested lines into priced order lines. Prices are copied
// into the line, so later menu edits never touch existing orders.
type Pricer struct {
	catalog menu.Catalog
}

func NewPricer(c menu.Catalog) *Pricer { return &Pricer{catalog: c} }

func (p *Pricer) PriceLines(ctx context.Context, tenantID string, reqs []domain.LineRequest) ([]domain.OrderLine, error) {
	if len(reqs) == 0 {
		return nil, domain.Errorf(domain.ErrInvalidArgument, "An order needs at least one item")
	}
	items, err := p.catalog.ListMenuItems(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load menu: %w", err)
	}

	lines := make([]domain.OrderLine, 0, len(reqs))
	for _, r := range reqs {
		line, err := priceLine(items, r)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func priceLine(items []domain.MenuItem, r domain.LineRequest) (domain.OrderLine, error) {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return domain.OrderLine{}, domain.Errorf(domain.ErrInvalidArgument, "Every item needs a name")
	}
	qty := r.Quantity
	if qty == 0 {
		qty = 1
	}
	if qty < 0 {
		return domain.OrderLine{}, domain.Errorf(domain.ErrInvalidArgument, "Quantity for %s must be positive", name)
	}

	it, ok := menu.Find(items, name)
	if !ok {
		msg := fmt.Sprintf("I couldn't find %s on the menu", name)
		if s := menu.Suggest(items, name, maxSuggestions); len(s) > 0 {
			msg += ". Did you mean " + strings.Join(s, ", ") + "?"
		}
		return domain.OrderLine{}, &domain.Error{Kind: domain.ErrItemNotFound, Message: msg}
	}
	if !it.IsAvailable {
		return domain.OrderLine{}, domain.Errorf(domain.ErrItemUnavailable, "%s is not available right now", it.Name)
	}

	price := it.Price
	var variant *domain.Variant
	if v := strings.TrimSpace(r.Variant); v != "" {
		for _, cand := range it.Variants {
			if strings.EqualFold(cand.Name, v) {
				c := cand
				variant = &c
				price = cand.Price
				break
			}
		}
	}

	return domain.OrderLine{
		MenuItemID: it.ID,
		Name:       it.Name,
		UnitPrice:  price,
		Quantity:   qty,
		LineTotal:  domain.Round2(price * float64(qty)),
		Variant:    variant,
		Notes:      strings.TrimSpace(r.Notes),
	}, nil
}

// Subtotal sums line totals.
func Subtotal(lines []domain.OrderLine) float64 {
	var s float64
	for _, l := range lines {
		s += l.LineTotal
	}
	return domain.Round2(s)
}

type taxRule struct {
	enabled    bool
	components []config.TaxComponent
}

// TaxPolicy applies the configured tax components, with per-tenant overrides.
type TaxPolicy struct {
	def     taxRule
	tenants map[string]taxRule
}

func NewTaxPolicy(cfg config.TaxConfig) *TaxPolicy {
	p := &TaxPolicy{def: ruleFrom(cfg.TaxRule), tenants: map[string]taxRule{}}
	for tenant, r := range cfg.Tenants {
		p.tenants[tenant] = ruleFrom(r)
	}
	return p
}

// A flat rate is one component named Tax.
func ruleFrom(r config.TaxRule) taxRule {
	comps := r.Components
	if len(comps) == 0 && r.Rate > 0 {
		comps = []config.TaxComponent{{Name: "Tax", Rate: r.Rate}}
	}
	return taxRule{enabled: r.Enabled, components: comps}
}

// Apply rounds each component to cents on its own and returns the
// breakdown with the sum of the rounded amounts.
func (p *TaxPolicy) Apply(tenantID string, subtotal float64) ([]domain.TaxLine, float64) {
	rule, ok := p.tenants[tenantID]
	if !ok {
		rule = p.def
	}
	if !rule.enabled {
		return nil, 0
	}
	var (
		lines []domain.TaxLine
		total float64
	)
	for _, c := range rule.components {
		amt := domain.Round2(subtotal * c.Rate / 100)
		lines = append(lines, domain.TaxLine{Name: c.Name, Rate: c.Rate, Amount: amt})
		total += amt
	}
	return lines, domain.Round2(total)
}

// reprice recomputes every amount derived from the lines.
func (p *TaxPolicy) reprice(o *domain.Order) {
	o.Subtotal = Subtotal(o.Items)
	o.TaxBreakdown, o.TaxAmount = p.Apply(o.TenantID, o.Subtotal)
	o.FinalAmount = domain.Round2(o.Subtotal + o.TaxAmount)
}
