package enrich

import (
	"strings"
	"unicode"

	ahocorasick "github.com/cloudflare/ahocorasick"

	"github.com/flori92/FloDrama-sub001/internal/domain"
)

// CategoryRule defines one assignable category: the keywords that signal
// it in free text, the languages and genres associated with it, and a
// weight applied to every scoring component.
type CategoryRule struct {
	Name      string   `yaml:"name"`
	Keywords  []string `yaml:"keywords"`
	Languages []string `yaml:"languages"`
	Genres    []string `yaml:"genres"`
	Weight    float64  `yaml:"weight"`
}

// Categorization scoring factors. Keyword hits in the title and synopsis
// count double, a language match triple; genre overlap counts once.
const (
	keywordFactor  = 2
	languageFactor = 3

	// secondaryShare is the fraction of the primary category's score
	// another category must reach to be kept as a secondary category.
	secondaryShare = 0.70
)

// Categorizer assigns a primary and secondary categories to items using
// a single Aho-Corasick pass over title and synopsis.
type Categorizer struct {
	rules    []CategoryRule
	matcher  *ahocorasick.Matcher
	keywords []string
	// kwRule[i] is the rule index owning keywords[i].
	kwRule []int
}

// NewCategorizer builds the keyword automaton from the given rules.
func NewCategorizer(rules []CategoryRule) *Categorizer {
	c := &Categorizer{rules: rules}
	for ri, rule := range rules {
		for _, kw := range rule.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			c.keywords = append(c.keywords, kw)
			c.kwRule = append(c.kwRule, ri)
		}
	}
	if len(c.keywords) > 0 {
		c.matcher = ahocorasick.NewStringMatcher(c.keywords)
	}
	return c
}

// Categorize scores every rule against the item and fills Category,
// SecondaryCategories and CategoryConfidence in place. Items matching no
// rule are left untouched.
func (c *Categorizer) Categorize(item *domain.ContentItem) {
	scores := make([]float64, len(c.rules))

	if c.matcher != nil {
		text := normalizeText(item.Title + " " + item.Synopsis)
		for _, hit := range c.matcher.Match([]byte(text)) {
			if hit < len(c.kwRule) {
				ri := c.kwRule[hit]
				scores[ri] += keywordFactor * c.rules[ri].Weight
			}
		}
	}

	for ri, rule := range c.rules {
		if matchesLanguage(rule.Languages, item.Language) {
			scores[ri] += languageFactor * rule.Weight
		}
		scores[ri] += float64(genreOverlap(rule.Genres, item.Genres)) * rule.Weight
	}

	best := -1
	for ri, s := range scores {
		if s > 0 && (best == -1 || s > scores[best]) {
			best = ri
		}
	}
	if best == -1 {
		return
	}

	item.Category = c.rules[best].Name
	item.SecondaryCategories = nil
	item.CategoryConfidence = make(map[string]float64, len(c.rules))
	for ri, s := range scores {
		if s <= 0 {
			continue
		}
		item.CategoryConfidence[c.rules[ri].Name] = s
		if ri != best && s > scores[best]*secondaryShare {
			item.SecondaryCategories = append(item.SecondaryCategories, c.rules[ri].Name)
		}
	}
}

func matchesLanguage(ruleLanguages []string, language string) bool {
	if language == "" {
		return false
	}
	language = strings.ToLower(language)
	for _, l := range ruleLanguages {
		if strings.ToLower(l) == language {
			return true
		}
	}
	return false
}

func genreOverlap(ruleGenres, itemGenres []string) int {
	if len(ruleGenres) == 0 || len(itemGenres) == 0 {
		return 0
	}
	set := make(map[string]bool, len(ruleGenres))
	for _, g := range ruleGenres {
		set[strings.ToLower(g)] = true
	}
	count := 0
	for _, g := range itemGenres {
		if set[strings.ToLower(g)] {
			count++
		}
	}
	return count
}

// normalizeText lowercases and replaces non-alphanumeric runes with
// spaces so keyword matches respect word boundaries.
func normalizeText(text string) string {
	text = strings.ToLower(text)
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

// DefaultCategoryRules is the built-in rule set used when no rule file
// is configured.
func DefaultCategoryRules() []CategoryRule {
	return []CategoryRule{
		{
			Name:      "romance",
			Keywords:  []string{"love", "romance", "romantic", "wedding", "marriage", "couple"},
			Languages: []string{"ko", "ja", "zh"},
			Genres:    []string{"romance", "melodrama"},
			Weight:    1,
		},
		{
			Name:      "action",
			Keywords:  []string{"action", "fight", "battle", "revenge", "war", "agent"},
			Genres:    []string{"action", "thriller", "martial arts"},
			Weight:    1,
		},
		{
			Name:      "comedy",
			Keywords:  []string{"comedy", "funny", "hilarious", "sitcom"},
			Genres:    []string{"comedy"},
			Weight:    1,
		},
		{
			Name:      "thriller",
			Keywords:  []string{"thriller", "murder", "crime", "detective", "mystery", "serial"},
			Genres:    []string{"thriller", "crime", "mystery"},
			Weight:    1,
		},
		{
			Name:      "fantasy",
			Keywords:  []string{"fantasy", "magic", "supernatural", "ghost", "reincarnation", "isekai"},
			Genres:    []string{"fantasy", "supernatural", "sci-fi"},
			Weight:    1,
		},
		{
			Name:      "historical",
			Keywords:  []string{"historical", "dynasty", "empire", "palace", "kingdom", "joseon"},
			Genres:    []string{"historical", "period"},
			Weight:    1,
		},
	}
}
