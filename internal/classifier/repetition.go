package classifier

func (c *Classifier) repetition(text string, recent []string) Repetition {
	var rep Repetition
	if text == "" || len(recent) == 0 {
		return rep
	}
	window := recent
	if c.RepeatWindow > 0 && len(window) > c.RepeatWindow {
		window = window[len(window)-c.RepeatWindow:]
	}
	current := wordSet(Tokenize(text))
	for _, prev := range window {
		p := Normalize(prev)
		if p == text {
			rep.Exact = true
			rep.Count++
			rep.Similarity = 1
			continue
		}
		sim := Overlap(current, wordSet(Tokenize(p)))
		if sim >= c.RepeatThreshold {
			rep.Count++
		}
		if sim > rep.Similarity {
			rep.Similarity = sim
		}
	}
	rep.Repeat = rep.Count > 0
	return rep
}

// Overlap is |a ∩ b| / max(|a|, |b|). Empty sets never overlap.
func Overlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for w := range a {
		if _, ok := b[w]; ok {
			shared++
		}
	}
	denom := len(a)
	if len(b) > denom {
		denom = len(b)
	}
	return float64(shared) / float64(denom)
}

func wordSet(words []string) map[string]struct{} {
	return toSet(words...)
}
