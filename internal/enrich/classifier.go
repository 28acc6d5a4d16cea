// internal/enrich/classifier.go
package enrich

import "strings"

// DefaultCategory is returned when no category rule scores above zero.
const DefaultCategory = "Other"

// categoryRule binds a category name to the keywords that vote for it.
// Rules are scored by counting keyword hits over the combined title and
// description; ties resolve to the rule declared first, so ordering here is
// part of the classifier's contract.
type categoryRule struct {
	Name     string
	Keywords []string
}

func defaultCategoryRules() []categoryRule {
	return []categoryRule{
		{Name: "Books", Keywords: []string{
			"book", "livro", "novel", "romance", "author", "autor", "paperback", "hardcover", "kindle", "ebook", "leitura",
		}},
		{Name: "Electronics", Keywords: []string{
			"phone", "telemóvel", "smartphone", "laptop", "portátil", "computer", "computador", "tablet",
			"headphone", "auscultador", "camera", "câmara", "tv", "televisão", "console", "consola",
			"monitor", "keyboard", "teclado", "mouse", "rato", "speaker", "coluna", "charger", "carregador", "usb", "bluetooth",
		}},
		{Name: "Fashion", Keywords: []string{
			"shirt", "camisa", "t-shirt", "dress", "vestido", "shoes", "sapatos", "sneaker", "ténis",
			"jacket", "casaco", "jeans", "calças", "skirt", "saia", "bag", "mala", "watch", "relógio",
			"sunglasses", "óculos", "clothing", "roupa", "fashion", "moda",
		}},
		{Name: "Home", Keywords: []string{
			"furniture", "móveis", "sofa", "sofá", "table", "mesa", "chair", "cadeira", "bed", "cama",
			"lamp", "candeeiro", "kitchen", "cozinha", "decor", "decoração", "curtain", "cortina", "rug", "tapete", "pillow", "almofada",
		}},
		{Name: "Beauty", Keywords: []string{
			"perfume", "makeup", "maquilhagem", "lipstick", "batom", "skincare", "cream", "creme",
			"shampoo", "fragrance", "fragrância", "cosmetic", "cosmético", "serum", "sérum",
		}},
		{Name: "Sports", Keywords: []string{
			"bike", "bicicleta", "fitness", "gym", "ginásio", "ball", "bola", "running", "corrida",
			"yoga", "dumbbell", "haltere", "treadmill", "passadeira", "sport", "desporto", "training", "treino",
		}},
		{Name: "Toys", Keywords: []string{
			"toy", "brinquedo", "lego", "puzzle", "doll", "boneca", "game", "jogo", "board game",
			"plush", "peluche", "playset", "action figure",
		}},
		{Name: "Travel", Keywords: []string{
			"suitcase", "luggage", "bagagem", "backpack", "mochila", "travel", "viagem", "hotel",
			"flight", "voo", "passport", "passaporte", "trip",
		}},
	}
}

// Classifier assigns a category to a product from its title and description.
type Classifier struct {
	rules []categoryRule
}

// NewClassifier creates a classifier. With no rules the default table is used.
func NewClassifier(rules []categoryRule) *Classifier {
	if len(rules) == 0 {
		rules = defaultCategoryRules()
	}
	return &Classifier{rules: rules}
}

// Classify scores each rule by counting its keywords in the combined title
// and description and returns the best-scoring category. A zero best score
// yields DefaultCategory; ties keep the earlier rule.
func (c *Classifier) Classify(title, description string) string {
	text := strings.ToLower(title + " " + description)

	best := DefaultCategory
	bestScore := 0
	for _, rule := range c.rules {
		score := 0
		for _, keyword := range rule.Keywords {
			if strings.Contains(text, keyword) {
				score++
			}
		}
		if score > bestScore {
			best = rule.Name
			bestScore = score
		}
	}
	return best
}
