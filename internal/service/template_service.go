// internal/service/template_service.go
package service

import (
	"sort"
	"strings"

	"github.com/unclebandit/wacrm-dispatch/internal/model"
)

// RenderTemplate replaces each {{key}} token with data[key] in a single pass.
// Tokens without an entry in data are left as they are.
func RenderTemplate(template string, data map[string]string) string {
	if len(data) == 0 {
		return template
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "{{"+k+"}}", data[k])
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// ContactPlaceholders is the token set available to campaign templates.
func ContactPlaceholders(c *model.Contact) map[string]string {
	return map[string]string{
		"name":  c.Name,
		"phone": c.Phone,
	}
}
