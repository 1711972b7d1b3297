package extract

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/findable-hq/findable/internal/model"
)

// extractSchemas collects JSON-LD and microdata structured-data objects.
// Invalid objects are kept with Valid=false so the schema pillar can score
// validation separately from presence.
func extractSchemas(doc *goquery.Document) []model.SchemaObject {
	var schemas []model.SchemaObject

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}
		schemas = append(schemas, parseJSONLD(raw)...)
	})

	doc.Find("[itemscope][itemtype]").Each(func(_ int, s *goquery.Selection) {
		itemtype, _ := s.Attr("itemtype")
		props := make(map[string]any)
		s.Find("[itemprop]").Each(func(_ int, p *goquery.Selection) {
			name, _ := p.Attr("itemprop")
			if name == "" {
				return
			}
			if content, ok := p.Attr("content"); ok {
				props[name] = content
				return
			}
			props[name] = strings.TrimSpace(p.Text())
		})
		schemas = append(schemas, model.SchemaObject{
			Type:       schemaTypeName(itemtype),
			Format:     "microdata",
			Valid:      true,
			Properties: props,
		})
	})

	return schemas
}

// parseJSONLD handles a single object, a top-level array, and the @graph
// wrapper. Unparseable blocks produce one invalid object.
func parseJSONLD(raw string) []model.SchemaObject {
	var root any
	if err := json.Unmarshal([]byte(raw), &root); err != nil {
		return []model.SchemaObject{{
			Type:   "unknown",
			Format: "json-ld",
			Valid:  false,
			Errors: []string{"invalid JSON: " + err.Error()},
		}}
	}

	var nodes []map[string]any
	switch v := root.(type) {
	case map[string]any:
		if graph, ok := v["@graph"].([]any); ok {
			for _, g := range graph {
				if m, ok := g.(map[string]any); ok {
					nodes = append(nodes, m)
				}
			}
		} else {
			nodes = append(nodes, v)
		}
	case []any:
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				nodes = append(nodes, m)
			}
		}
	}

	var schemas []model.SchemaObject
	for _, node := range nodes {
		so := model.SchemaObject{
			Format:     "json-ld",
			Valid:      true,
			Properties: node,
		}
		switch t := node["@type"].(type) {
		case string:
			so.Type = t
		case []any:
			if len(t) > 0 {
				if s, ok := t[0].(string); ok {
					so.Type = s
				}
			}
		}
		if so.Type == "" {
			so.Type = "unknown"
			so.Valid = false
			so.Errors = append(so.Errors, "missing @type")
		}
		schemas = append(schemas, validateSchema(so))
	}
	return schemas
}

// validateSchema applies the per-type required-property checks the schema
// pillar cares about.
func validateSchema(so model.SchemaObject) model.SchemaObject {
	require := func(prop string) {
		if _, ok := so.Properties[prop]; !ok {
			so.Valid = false
			so.Errors = append(so.Errors, "missing "+prop)
		}
	}
	switch so.Type {
	case "FAQPage":
		require("mainEntity")
	case "Article", "BlogPosting", "NewsArticle":
		require("headline")
	case "Organization":
		require("name")
	case "HowTo":
		require("step")
	}
	return so
}

func schemaTypeName(itemtype string) string {
	if idx := strings.LastIndex(itemtype, "/"); idx >= 0 {
		return itemtype[idx+1:]
	}
	return itemtype
}
