package warehouse

import "fmt"

// Component is one line of a recipe: Amount units of Product per unit of
// the derivate product.
type Component struct {
	product *Product
	amount  int
}

func (c Component) Product() *Product { return c.product }
func (c Component) Amount() int       { return c.amount }

// Recipe describes how a derivate product is fabricated.
type Recipe struct {
	aggravation Money
	components  []Component
}

// newRecipe validates and builds a recipe. products and amounts are
// parallel slices.
func newRecipe(productKey string, aggravation Money, products []*Product, amounts []int) (*Recipe, error) {
	invalid := func(format string, args ...any) error {
		return &InvalidRecipeError{ProductKey: productKey, Reason: fmt.Sprintf(format, args...)}
	}

	if len(products) != len(amounts) {
		return nil, invalid("%d components but %d amounts", len(products), len(amounts))
	}
	if len(products) == 0 {
		return nil, invalid("no components")
	}
	if aggravation.IsNegative() {
		return nil, invalid("negative aggravation %s", aggravation)
	}

	components := make([]Component, len(products))
	for i, p := range products {
		if amounts[i] <= 0 {
			return nil, invalid("component %s needs a positive amount, got %d", p.key, amounts[i])
		}
		components[i] = Component{product: p, amount: amounts[i]}
	}
	return &Recipe{aggravation: aggravation, components: components}, nil
}

func (r *Recipe) Aggravation() Money { return r.aggravation }

// Components returns a copy of the component list in recipe order.
func (r *Recipe) Components() []Component {
	out := make([]Component, len(r.components))
	copy(out, r.components)
	return out
}

// requires reports whether the recipe needs target, directly or through
// its components.
func (r *Recipe) requires(target *Product) bool {
	return r.reaches(target, make(map[*Product]bool))
}

func (r *Recipe) reaches(target *Product, seen map[*Product]bool) bool {
	for _, c := range r.components {
		if c.product == target {
			return true
		}
		if seen[c.product] {
			continue
		}
		seen[c.product] = true
		if c.product.recipe != nil && c.product.recipe.reaches(target, seen) {
			return true
		}
	}
	return false
}
