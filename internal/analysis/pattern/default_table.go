package pattern

// DefaultRules is the built-in pattern set. Order matters: it breaks ties.
func DefaultRules() []Rule {
	return []Rule{
		{
			Tag:  "sunk-cost",
			Name: "Sunk-cost",
			Cues: []string{
				`\balready (paid|spent|invested|bought)\b`,
				`\b(paid|spent)\b`,
				`\bwast(e|ed|ing|eful)\b`,
				`\b(deposit|money|cost|price|expensive|dollars?)\b`,
				`\$\d+`,
				`\b(stupid|should have)\b`,
			},
			Insight: "The response to {trigger} is not about the specific cost; it is a proxy for inherited expectations of self-punishment when resources are perceived as wasted. " +
				"Your system conflates monetary loss with personal failure. " +
				"Nothing is wasted if it protects nervous system equilibrium.",
		},
		{
			Tag:  "anticipatory-vigilance",
			Name: "Anticipatory vigilance",
			Cues: []string{
				`\bcheck(ing|ed)?\b`,
				`\b(phone|messages?|texts?|emails?|notifications?)\b`,
				`\b(read|delivered|seen|status|responded|respond|response|reply)\b`,
				`\b(\d+|ten|twenty) times\b`,
				`\b(keep|kept) looking\b`,
			},
			Insight: "This demonstrates anticipatory vigilance: monitoring external responses as a form of emotional control and self-protection. " +
				"The checking behavior substitutes action for outcome certainty. " +
				"Equilibrium is built internally rather than outsourced to the responses of others.",
		},
		{
			Tag:  "emotional-pendulum",
			Name: "Emotional pendulum",
			Cues: []string{
				`\b(anger|angry|furious)\b`,
				`\b(guilt|guilty)\b`,
				`\b(apologi[sz]e|sorry|reconcil\w*|reach(ing)? out)\b`,
				`\b(argument|fight|conflict)\b`,
			},
			Insight: "This shows the emotional pendulum: intensity swings between rupture and repair. " +
				"The guilt impulse functions as an attempt to restore connection at the cost of boundary integrity. " +
				"Anger creates an illusion of power; guilt creates an illusion of restoration.",
		},
		{
			Tag:  "compliance-reflex",
			Name: "Compliance reflex",
			Cues: []string{
				`\b(thank\w*|grateful|obliged)\b`,
				`\b(have to|supposed to|owe)\b`,
				`\b(couldn't|can't) say no\b`,
			},
			Insight: "This is an autonomic compliance reflex. The system registers temporary relief as relationship repair, bypassing the original boundary breach. " +
				"When gratitude overrides caution it becomes compulsive appeasement.",
		},
		{
			Tag:  "boundary-violation",
			Name: "Boundary violation",
			Cues: []string{
				`\b(interrupt\w*|unannounced|unexpected\w*)\b`,
				`\bwithout (asking|permission|consent)\b`,
				`\b(barged|showed up|walked in)\b`,
			},
			Insight: "The reaction marks a boundary breach converted into obligation. " +
				"The system learned to absorb violations as debts. " +
				"Assistance offered without consent does not create emotional debt.",
		},
		{
			Tag:  "performance-anxiety",
			Name: "Performance anxiety",
			Cues: []string{
				`\b(presentation|interview|exam|performance|speech)\b`,
				`\b(tomorrow|tonight|next week)\b`,
				`\bwoke up\b`,
				`\bmind (is |was )?racing\b`,
				`\b(review\w*|rehears\w*|going over)\b`,
			},
			Insight: "The nervous system is executing an anticipatory preparation protocol, clearing load before performance exposure regarding {context}. " +
				"The body treats upcoming evaluation as survival-level importance. " +
				"Anxiety here functions as a preparation signal, not a malfunction.",
		},
		{
			Tag:  "family-dynamics",
			Name: "Family dynamics",
			Cues: []string{
				`\b(father|mother|dad|mom|sister|brother|parents?)\b`,
				`\b(family|relatives?)\b`,
			},
			Insight: "This interaction carries emotional lineage charge: expectation, wound and historic patterns converge in family communication. " +
				"The body holds inherited scripts about approval and disappointment.",
		},
		{
			Tag:  "financial-anxiety",
			Name: "Financial anxiety",
			Cues: []string{
				`\b(payment|transaction|transfer|e-transfer)\b`,
				`\b(bank|account|rent|bill)\b`,
				`\b(deposit)\b`,
			},
			Insight: "Financial transactions trigger precision anxiety; the nervous system treats monetary accuracy as survival-level importance. " +
				"Precision is not panic.",
		},
	}
}

// DefaultTable compiles DefaultRules.
func DefaultTable() *Table {
	return MustTable(DefaultRules())
}
