package dialogue

// SeedLanguages lists the languages shipped with the built-in scenarios.
var SeedLanguages = []string{"en", "fr"}

// SeedNodes returns the built-in conversation for lang, or nil when none exists.
func SeedNodes(lang string) []*Node {
	switch lang {
	case "en":
		return seedEnglish()
	case "fr":
		return seedFrench()
	default:
		return nil
	}
}

func seedEnglish() []*Node {
	return []*Node{
		// Opening - the agent greets the visitor
		{
			ID:           "start",
			Speaker:      SpeakerAgent,
			Text:         "Hi! I'm the studio assistant. We design brands, build products and tell stories for ambitious teams.\n\nWhat brings you here today?",
			AnimationCue: "wave",
			Choices: []Choice{
				{ID: "services", Text: "What do you do?", NextNodeID: "services"},
				{ID: "work", Text: "Show me your work", NextNodeID: "work"},
				{ID: "portal", Text: "I'm a client, take me to the portal", Action: ActionRedirect, URL: "https://example.com/portal"},
			},
		},

		{
			ID:           "services",
			Speaker:      SpeakerAgent,
			Text:         "Three studios under one roof: brand & design, product engineering, and motion.\n\nWhich one should I tell you about?",
			AnimationCue: "point",
			Choices: []Choice{
				{ID: "design", Text: "Brand & design", NextNodeID: "design"},
				{ID: "engineering", Text: "Product engineering", NextNodeID: "engineering"},
				{ID: "back", Text: "Back to the beginning", NextNodeID: "start"},
			},
		},

		{
			ID:           "design",
			Speaker:      SpeakerAgent,
			Text:         "Identity systems, campaigns and websites that move. Our design studio works from strategy to the last pixel.",
			ImageSrc:     "/images/studios/design.webp",
			AnimationCue: "sketch",
			Choices: []Choice{
				{ID: "contact", Text: "Let's talk", NextNodeID: "contact"},
				{ID: "more", Text: "What else?", NextNodeID: "services"},
			},
		},

		{
			ID:           "engineering",
			Speaker:      SpeakerAgent,
			Text:         "Web platforms, apps and the infrastructure behind them. Shipped, measured, maintained.",
			ImageSrc:     "/images/studios/engineering.webp",
			AnimationCue: "type",
			Choices: []Choice{
				{ID: "contact", Text: "Let's talk", NextNodeID: "contact"},
				{ID: "more", Text: "What else?", NextNodeID: "services"},
			},
		},

		{
			ID:      "work",
			Speaker: SpeakerAgent,
			Text:    "Our case studies cover retail, culture and fintech. Want to browse them, or would you rather talk to a human?",
			Choices: []Choice{
				{ID: "cases", Text: "Open the case studies", Action: ActionRedirect, URL: "https://example.com/work"},
				{ID: "contact", Text: "Talk to a human", NextNodeID: "contact"},
			},
		},

		// Ending - offers restart
		{
			ID:           "contact",
			Speaker:      SpeakerSystem,
			Text:         "Thanks! Drop us a line at hello@example.com and a producer will get back to you within a day.",
			AnimationCue: "bow",
			IsEnding:     true,
		},
	}
}

func seedFrench() []*Node {
	return []*Node{
		{
			ID:           "start",
			Speaker:      SpeakerAgent,
			Text:         "Bonjour ! Je suis l'assistant du studio. Nous concevons des marques, des produits et des histoires.\n\nQu'est-ce qui vous amène ?",
			AnimationCue: "wave",
			Choices: []Choice{
				{ID: "services", Text: "Que faites-vous ?", NextNodeID: "services"},
				{ID: "work", Text: "Montrez-moi vos projets", NextNodeID: "work"},
				{ID: "portal", Text: "Je suis client, vers le portail", Action: ActionRedirect, URL: "https://example.com/fr/portal"},
			},
		},

		{
			ID:           "services",
			Speaker:      SpeakerAgent,
			Text:         "Trois studios sous un même toit : marque & design, ingénierie produit et motion.",
			AnimationCue: "point",
			Choices: []Choice{
				{ID: "contact", Text: "Parlons-en", NextNodeID: "contact"},
				{ID: "back", Text: "Revenir au début", NextNodeID: "start"},
			},
		},

		{
			ID:      "work",
			Speaker: SpeakerAgent,
			Text:    "Nos études de cas couvrent le commerce, la culture et la fintech.",
			Choices: []Choice{
				{ID: "cases", Text: "Voir les études de cas", Action: ActionRedirect, URL: "https://example.com/fr/work"},
				{ID: "contact", Text: "Parler à quelqu'un", NextNodeID: "contact"},
			},
		},

		{
			ID:           "contact",
			Speaker:      SpeakerSystem,
			Text:         "Merci ! Écrivez-nous à hello@example.com, un producteur vous répondra sous 24 heures.",
			AnimationCue: "bow",
			IsEnding:     true,
		},
	}
}
