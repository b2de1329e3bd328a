package models_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"ms-booking/internal/models"
)

func TestRefUnmarshalString(t *testing.T) {
	var ref models.Ref
	err := json.Unmarshal([]byte(`"boat123"`), &ref)
	assert.NoError(t, err)
	assert.Equal(t, "boat123", ref.ID())
}

func TestRefUnmarshalDocument(t *testing.T) {
	var ref models.Ref
	err := json.Unmarshal([]byte(`{"id":"boat123","name":"Sea Breeze 42"}`), &ref)
	assert.NoError(t, err)
	assert.Equal(t, "boat123", ref.ID())
}

func TestRefUnmarshalNull(t *testing.T) {
	ref := models.NewRef("stale")
	err := json.Unmarshal([]byte(`null`), &ref)
	assert.NoError(t, err)
	assert.True(t, ref.IsZero())
}

func TestRefMarshal(t *testing.T) {
	data, err := json.Marshal(models.NewRef("boat123"))
	assert.NoError(t, err)
	assert.Equal(t, `"boat123"`, string(data))

	data, err = json.Marshal(models.Ref{})
	assert.NoError(t, err)
	assert.Equal(t, `null`, string(data))
}

func TestRefScanAndValue(t *testing.T) {
	var ref models.Ref
	assert.NoError(t, ref.Scan("boat123"))
	assert.Equal(t, "boat123", ref.ID())

	assert.NoError(t, ref.Scan([]byte("boat456")))
	assert.Equal(t, "boat456", ref.ID())

	assert.NoError(t, ref.Scan(nil))
	assert.True(t, ref.IsZero())

	v, err := models.NewRef("boat123").Value()
	assert.NoError(t, err)
	assert.Equal(t, "boat123", v)

	v, err = models.Ref{}.Value()
	assert.NoError(t, err)
	assert.Nil(t, v)
}
