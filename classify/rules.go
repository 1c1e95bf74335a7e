// Copyright 2025 Unigate
// SPDX-License-Identifier: Apache-2.0

package classify

import (
	"regexp"

	"github.com/unigate/unigate/providers"
)

// domainRule scores one candidate domain. Keywords are matched on word
// boundaries against the lowercased query (English and Spanish);
// patterns score double because they encode stronger signals.
type domainRule struct {
	domain   providers.Domain
	keywords []string
	patterns []*regexp.Regexp
}

// domainRules is evaluated in order; the order is also the stable
// tie-break between equal scores.
var domainRules = []domainRule{
	{
		domain: providers.DomainCryptoPrice,
		keywords: []string{
			"bitcoin", "btc", "ethereum", "eth", "crypto", "coin price",
			"criptomoneda", "precio de bitcoin", "solana", "dogecoin", "blockchain",
		},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(price|precio)\s+(of\s+|de\s+)?(bitcoin|btc|ethereum|eth|solana|doge)`),
			regexp.MustCompile(`(?i)\b(btc|eth|sol|doge|ada|xrp)\s*/\s*(usd|eur|usdt)\b`),
		},
	},
	{
		domain: providers.DomainStock,
		keywords: []string{
			"stock", "shares", "nasdaq", "dow jones", "s&p", "ticker",
			"accion", "acciones", "bolsa", "cotizacion", "dividend", "earnings",
		},
		patterns: []*regexp.Regexp{
			// Matching runs on the lowercased query, so the ticker
			// pattern cannot require capitals here.
			regexp.MustCompile(`\$[a-z]{1,5}\b`),
			regexp.MustCompile(`\b(stock|share)\s+price\b`),
		},
	},
	{
		domain: providers.DomainMarket,
		keywords: []string{
			"market summary", "market overview", "indices", "index today",
			"resumen del mercado", "mercados hoy", "market close",
		},
	},
	{
		domain: providers.DomainWeather,
		keywords: []string{
			"weather", "temperature", "forecast", "rain", "snow", "humidity",
			"clima", "tiempo en", "temperatura", "pronostico", "lluvia",
		},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bweather\s+(in|for|at)\b`),
			regexp.MustCompile(`(?i)\b(clima|tiempo)\s+en\b`),
		},
	},
	{
		domain: providers.DomainNews,
		keywords: []string{
			"news", "headline", "breaking", "latest on", "article",
			"noticias", "titulares", "ultima hora", "press",
		},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(latest|recent|today'?s)\s+news\b`),
		},
	},
	{
		domain: providers.DomainMedical,
		keywords: []string{
			"symptom", "disease", "diagnosis", "treatment", "medication", "drug",
			"dosage", "side effect", "clinical", "pubmed",
			"sintoma", "enfermedad", "tratamiento", "medicamento", "dosis",
		},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(side\s+effects?|contraindications?)\s+of\b`),
			regexp.MustCompile(`(?i)\bis\s+.{2,40}\s+(contagious|hereditary)\b`),
		},
	},
	{
		domain: providers.DomainGeocode,
		keywords: []string{
			"coordinates", "latitude", "longitude", "where is", "address of",
			"coordenadas", "latitud", "longitud", "donde queda", "donde esta",
		},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`-?\d{1,3}\.\d+\s*,\s*-?\d{1,3}\.\d+`),
		},
	},
	{
		domain: providers.DomainTranslate,
		keywords: []string{
			"translate", "translation", "how do you say", "in spanish", "in english",
			"in french", "traduce", "traducir", "como se dice",
		},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\btranslate\s+.+\s+(to|into)\s+\w+`),
		},
	},
	{
		domain: providers.DomainMedia,
		keywords: []string{
			"gif", "meme", "image of", "picture of", "photo of", "sticker",
			"imagen de", "foto de",
		},
	},
	{
		domain: providers.DomainEncyclopedia,
		keywords: []string{
			"who is", "who was", "what is", "what are", "define", "definition",
			"history of", "quien es", "quien fue", "que es", "definicion", "historia de",
		},
	},
}

// deepTriggers force deep mode: explicit reports, academic context,
// comparative questions.
var deepTriggers = []string{
	"detailed report", "in depth", "in-depth", "comprehensive", "thorough",
	"research", "academic", "thesis", "literature review", "systematic review",
	"compare", "comparison", "versus", " vs ", "pros and cons", "analyze",
	"informe detallado", "a fondo", "investigacion", "comparar", "ventajas y desventajas",
}

// fastTriggers force fast mode: greetings and short acknowledgments.
var fastTriggers = []string{
	"hello", "hi ", "hey", "good morning", "good evening", "good night",
	"thanks", "thank you", "ok", "okay", "bye", "goodbye", "yes", "no",
	"hola", "buenos dias", "buenas tardes", "buenas noches", "gracias",
	"vale", "adios", "si", "no",
}

// Entity extraction patterns.
var (
	tickerPattern = regexp.MustCompile(`\$([A-Z]{1,5})\b`)
	quotedPattern = regexp.MustCompile(`"([^"]{1,80})"`)
	coordPattern  = regexp.MustCompile(`-?\d{1,3}\.\d+\s*,\s*-?\d{1,3}\.\d+`)
	placePattern  = regexp.MustCompile(`(?i)\b(?:in|en)\s+([A-ZÁÉÍÓÚ][\p{L}]+(?:\s+[A-ZÁÉÍÓÚ][\p{L}]+)?)`)
	coinPattern   = regexp.MustCompile(`(?i)\b(bitcoin|btc|ethereum|eth|solana|sol|dogecoin|doge|cardano|ada|ripple|xrp)\b`)
)
