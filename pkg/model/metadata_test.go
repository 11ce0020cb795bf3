package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInventoryMetadataValidate(t *testing.T) {
	tests := []struct {
		name    string
		meta    InventoryMetadata
		wantErr bool
	}{
		{
			name: "valid",
			meta: InventoryMetadata{
				SystemDescriptions:   []SystemDescription{{Name: "Heat system", Category: "Others"}},
				LiteratureReferences: []LiteratureReference{{Name: "Smith 2020", Category: "Methods"}},
			},
		},
		{
			name:    "missing category",
			meta:    InventoryMetadata{SystemDescriptions: []SystemDescription{{Name: "Heat system"}}},
			wantErr: true,
		},
		{
			name:    "missing name",
			meta:    InventoryMetadata{LiteratureReferences: []LiteratureReference{{Category: "Methods"}}},
			wantErr: true,
		},
		{
			name: "duplicate literature",
			meta: InventoryMetadata{LiteratureReferences: []LiteratureReference{
				{Name: "Smith 2020", Category: "Methods"},
				{Name: "smith 2020", Category: "Data"},
			}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.meta.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidMetadata)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestOverlayDefaults(t *testing.T) {
	var nilMeta *InventoryMetadata
	assert.Equal(t, DatasetDefaults(), nilMeta.OverlayDefaults(DatasetDefaults()))

	base := DatasetDefaults()
	m := &InventoryMetadata{Defaults: map[string]string{"Status": "Finished", "technology": "Modern"}}
	merged := m.OverlayDefaults(base)
	assert.Equal(t, "Finished", merged["status"])
	assert.Equal(t, "Modern", merged["technology"])
	assert.Equal(t, "Unit process", merged["type"])
	assert.Equal(t, "Draft", base["status"])
}
