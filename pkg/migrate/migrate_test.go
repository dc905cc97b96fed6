package migrate

import (
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/schema"

	"github.com/anvaya/commerce-backend/pkg/db/models"
)

var createTableRe = regexp.MustCompile(`(?i)CREATE TABLE (\w+)`)

// The repositories rely on gorm's default naming strategy, so every model
// must resolve to a table one of the migrations actually creates.
func TestMigrationsCreateEveryModelTable(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, files, "no migration files found")

	created := map[string]bool{}
	for _, file := range files {
		raw, err := os.ReadFile(file)
		require.NoError(t, err)
		for _, match := range createTableRe.FindAllStringSubmatch(string(raw), -1) {
			created[match[1]] = true
		}
	}

	for _, model := range []any{
		&models.Order{},
		&models.OrderItem{},
		&models.OrderStatusHistory{},
		&models.ReturnRequest{},
		&models.ReturnItem{},
		&models.WebhookEvent{},
	} {
		parsed, err := schema.Parse(model, &sync.Map{}, schema.NamingStrategy{})
		require.NoError(t, err)
		assert.Truef(t, created[parsed.Table],
			"model %s maps to table %q but no migration creates it", parsed.Name, parsed.Table)
	}
}
