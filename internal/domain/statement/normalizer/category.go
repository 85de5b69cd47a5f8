package normalizer

import "regexp"

// DefaultCategory is used when no keyword matches.
const DefaultCategory = "Outros"

type categoryRule struct {
	name    string
	pattern *regexp.Regexp
}

// categoryRules are checked in order; the first match wins.
var categoryRules = []categoryRule{
	{"Alimentação", regexp.MustCompile(`(?i)restaurante|lanchonete|padaria|pastelaria|supermercado|mercado|ifood|uber\s*eats|rappi|pingo\s*doce|continente|lidl|aldi|minipre[cç]o`)},
	{"Transporte", regexp.MustCompile(`(?i)uber|bolt|taxi|gasolina|posto|combust[ií]vel|estacionamento|portagem|ped[aá]gio|via\s*verde|repsol|galp|cp\s*-|metro`)},
	{"Moradia", regexp.MustCompile(`(?i)aluguel|\brendas?\b|condom[ií]nio|energia|edp|[aá]gua|\bg[aá]s\b|internet|\bluz\b`)},
	{"Entretenimento", regexp.MustCompile(`(?i)netflix|spotify|cinema|teatro|concerto|bilhete|ingresso|amazon\s*prime|disney|hbo|apple\.com`)},
	{"Saúde", regexp.MustCompile(`(?i)farm[aá]cia|drogaria|hospital|cl[ií]nica|m[eé]dic|seguro\s*de\s*sa[uú]de|plano\s*de\s*sa[uú]de`)},
	{"Transferência", regexp.MustCompile(`(?i)transfer[eê]ncia|mb\s*way|\btrf\b|\btrans\b`)},
}

// InferCategory assigns a spending category from description keywords.
func InferCategory(description string) string {
	for _, rule := range categoryRules {
		if rule.pattern.MatchString(description) {
			return rule.name
		}
	}
	return DefaultCategory
}

// Categories lists every category InferCategory can return.
func Categories() []string {
	names := make([]string, 0, len(categoryRules)+1)
	for _, rule := range categoryRules {
		names = append(names, rule.name)
	}
	return append(names, DefaultCategory)
}
