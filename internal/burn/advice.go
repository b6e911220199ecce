package burn

const (
	adviceReapply         = "Reapply sunscreen every 2 hours, after swimming, or excessive sweating"
	adviceEnjoy           = "With these precautions you can spend the rest of the day out in the sun, enjoy!"
	adviceUseSunscreen    = "You should try again with sunscreen"
	adviceLimitTime       = "Limit your time in the sun today"
	adviceStrongerOrLimit = "Try using a stronger sunscreen or limit your time in the sun today"
)

// Advice maps the SPF choice and the result's final damage to guidance lines.
func Advice(spf SPFLevel, res Result) []string {
	advice := []string{}
	if spf != SPFNone {
		advice = append(advice, adviceReapply)
	}
	if len(res.Points) == 0 {
		return advice
	}

	if res.FinalDamage() < SafetyThreshold {
		if spf != SPFNone {
			advice = append(advice, adviceEnjoy)
		}
		return advice
	}

	switch spf {
	case SPFNone:
		advice = append(advice, adviceUseSunscreen)
	case SPF50Plus:
		advice = append(advice, adviceLimitTime)
	default:
		advice = append(advice, adviceStrongerOrLimit)
	}
	return advice
}
