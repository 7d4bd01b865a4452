package provider

import "fmt"

// systemPrompt instructs the model to classify a French social-media message
// and answer with nothing but the fixed JSON schema below. Category and
// priority tokens form closed sets; anything else is rejected at parse time.
const systemPrompt = `Tu es un analyste du service client d'un opérateur télécom français.
On te donne un message court publié sur les réseaux sociaux. Analyse-le et réponds
UNIQUEMENT avec un objet JSON respectant exactement ce schéma :

{
  "sentiment": "positive" | "neutral" | "negative" | "unknown",
  "sentiment_score": nombre entre -1.0 et 1.0,
  "category": "network" | "billing" | "technical" | "commercial" | "customer_service" | "offer" | "equipment" | "other",
  "priority": "critical" | "high" | "medium" | "low",
  "keywords": [liste de mots-clés extraits du message],
  "urgent": true | false,
  "needs_response": true | false,
  "estimated_resolution_min": nombre entier positif ou null
}

Ne fournis aucune explication, aucun texte hors du JSON.`

func userPrompt(text string) string {
	return fmt.Sprintf("Message à analyser :\n\n%s", text)
}
