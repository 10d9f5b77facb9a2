package extract

import (
	"sort"
	"strings"
	"unicode"

	"github.com/ppiankov/symptra/internal/reference"
)

// seedSymptoms are the phrases recognized even when no severity table is loaded
var seedSymptoms = []string{
	"itching", "skin rash", "nodal skin eruptions", "continuous sneezing", "shivering", "chills",
	"joint pain", "stomach pain", "acidity", "ulcers on tongue", "muscle wasting", "vomiting",
	"burning micturition", "spotting urination", "fatigue", "weight gain", "anxiety",
	"cold hands and feets", "mood swings", "weight loss", "restlessness", "lethargy",
	"patches in throat", "irregular sugar level", "cough", "high fever", "sunken eyes",
	"breathlessness", "sweating", "dehydration", "indigestion", "headache", "yellowish skin",
	"dark urine", "nausea", "loss of appetite", "pain behind the eyes", "back pain",
	"constipation", "abdominal pain", "diarrhoea", "mild fever", "yellow urine",
	"yellowing of eyes", "acute liver failure", "fluid overload", "swelling of stomach",
	"swelled lymph nodes", "malaise", "blurred and distorted vision", "phlegm",
	"throat irritation", "redness of eyes", "sinus pressure", "runny nose", "congestion",
	"chest pain", "weakness in limbs", "fast heart rate", "pain during bowel movements",
	"pain in anal region", "bloody stool", "irritation in anus", "neck pain", "dizziness",
	"cramps", "bruising", "obesity", "swollen legs", "swollen blood vessels",
	"puffy face and eyes", "enlarged thyroid", "brittle nails", "swollen extremeties",
	"excessive hunger", "extra marital contacts", "drying and tingling lips", "slurred speech",
	"knee pain", "hip joint pain", "muscle weakness", "stiff neck", "swelling joints",
	"movement stiffness", "spinning movements", "loss of balance", "unsteadiness",
	"weakness of one body side", "loss of smell", "bladder discomfort",
	"foul smell of urine", "continuous feel of urine", "passage of gases", "internal itching",
	"toxic look (typhos)", "depression", "irritability", "muscle pain", "altered sensorium",
	"red spots over body", "belly pain", "abnormal menstruation", "dischromic patches",
	"watering from eyes", "increased appetite", "polyuria", "family history", "mucoid sputum",
	"rusty sputum", "lack of concentration", "visual disturbances", "receiving blood transfusion",
	"receiving unsterile injections", "coma", "stomach bleeding", "distention of abdomen",
	"history of alcohol consumption", "blood in sputum",
	"prominent veins on calf", "palpitations", "painful walking", "pus filled pimples",
	"blackheads", "scurring", "skin peeling", "silver like dusting", "small dents in nails",
	"inflammatory nails", "blister", "red sore around nose", "yellow crust ooze",
}

// Catalog is the set of symptom phrases the extractors look for.
// Phrases are stored in canonical form.
type Catalog struct {
	phrases []string
	// first token -> token sequences of phrases starting with it
	byHead map[string][]tokenPhrase
}

type tokenPhrase struct {
	phrase string
	tokens []string
}

// NewCatalog builds a catalog from the built-in seed list plus extra phrases,
// typically the severity table symptoms so every feature is extractable.
func NewCatalog(extra ...string) *Catalog {
	seen := make(map[string]struct{}, len(seedSymptoms)+len(extra))
	c := &Catalog{byHead: make(map[string][]tokenPhrase)}

	add := func(p string) {
		p = reference.Canonical(p)
		if p == "" {
			return
		}
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		c.phrases = append(c.phrases, p)

		tokens := tokenize(p)
		if len(tokens) == 0 {
			return
		}
		c.byHead[tokens[0]] = append(c.byHead[tokens[0]], tokenPhrase{phrase: p, tokens: tokens})
	}

	for _, p := range seedSymptoms {
		add(p)
	}
	for _, p := range extra {
		add(p)
	}
	sort.Strings(c.phrases)
	return c
}

// Phrases returns the sorted catalog phrases
func (c *Catalog) Phrases() []string {
	out := make([]string, len(c.phrases))
	copy(out, c.phrases)
	return out
}

// Len returns the number of phrases
func (c *Catalog) Len() int {
	return len(c.phrases)
}

// scanSubstrings returns every phrase occurring anywhere in canonical text.
// Matches may start or end inside a longer word.
func (c *Catalog) scanSubstrings(text string) []string {
	var found []string
	for _, p := range c.phrases {
		if strings.Contains(text, p) {
			found = append(found, p)
		}
	}
	return found
}

// matchTokens returns phrases whose whole token sequence occurs in tokens.
// Overlapping matches are all reported.
func (c *Catalog) matchTokens(tokens []string) []string {
	var found []string
	for i, tok := range tokens {
		for _, cand := range c.byHead[tok] {
			if i+len(cand.tokens) > len(tokens) {
				continue
			}
			if equalTokens(tokens[i:i+len(cand.tokens)], cand.tokens) {
				found = append(found, cand.phrase)
			}
		}
	}
	return found
}

// tokenize splits canonical text into runs of letters and digits.
// Punctuation separates tokens and is dropped.
func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func equalTokens(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
