package config

import (
	"github.com/picdock/engine/internal/model"
)

// Migrate applies each versioned transformation v -> v+1 in order over a
// raw decoded JSON document. Migrations work on the loosely typed map
// form so that a field dropped from a later struct definition
// never causes an old document to fail decoding outright; every step is
// additive and must not remove fields it does not understand.
func Migrate(doc map[string]any) map[string]any {
	version := versionOf(doc)

	for version < CurrentVersion {
		switch version {
		case 0:
			doc = migrateV0ToV1(doc)
		case 1:
			doc = migrateV1ToV2(doc)
		case 2:
			doc = migrateV2ToV3(doc)
		default:
			return doc
		}

		version++
		doc["config_version"] = version
	}

	return doc
}

func versionOf(doc map[string]any) int {
	v, ok := doc["config_version"]
	if !ok {
		return 0
	}

	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}

// migrateV0ToV1 moves the old single-string "link_prefix" field into the
// list-backed link_prefix_config structure, selecting it as index 0.
func migrateV0ToV1(doc map[string]any) map[string]any {
	prefix, ok := doc["link_prefix"].(string)
	delete(doc, "link_prefix")

	if !ok || prefix == "" {
		doc["link_prefix_config"] = map[string]any{
			"enabled":        false,
			"prefix_list":    []any{},
			"selected_index": 0,
		}

		return doc
	}

	doc["link_prefix_config"] = map[string]any{
		"enabled":        true,
		"prefix_list":    []any{prefix},
		"selected_index": 0,
	}

	return doc
}

// migrateV1ToV2 ensures every currently-known backend has a disabled-by-
// default entry, so documents written before a backend existed still
// validate and render it in the UI's backend list.
func migrateV1ToV2(doc map[string]any) map[string]any {
	backends, _ := doc["backends"].(map[string]any)
	if backends == nil {
		backends = map[string]any{}
	}

	for _, id := range model.AllBackends {
		key := string(id)
		if _, exists := backends[key]; !exists {
			backends[key] = map[string]any{"enabled": false}
		}
	}

	doc["backends"] = backends

	if _, ok := doc["available_backends"]; !ok {
		list := make([]any, len(model.AllBackends))
		for i, id := range model.AllBackends {
			list[i] = string(id)
		}

		doc["available_backends"] = list
	}

	return doc
}

// migrateV2ToV3 adds the CDN-config substructure to a GitHub backend entry
// lacking one, defaulting it to disabled.
func migrateV2ToV3(doc map[string]any) map[string]any {
	backends, _ := doc["backends"].(map[string]any)
	if backends == nil {
		return doc
	}

	gh, ok := backends[string(model.BackendGithub)].(map[string]any)
	if !ok {
		return doc
	}

	git, _ := gh["git"].(map[string]any)
	if git == nil {
		return doc
	}

	if _, exists := git["cdn_config"]; !exists {
		git["cdn_config"] = map[string]any{"enabled": false, "template": ""}
	}

	return doc
}
