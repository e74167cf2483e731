package store

import (
	"testing"

	"github.com/sami-chanane/thesis-pizza-app/pkg/model"
	"github.com/stretchr/testify/assert"
)

func TestKeyValueCRUD(t *testing.T) {
	s := NewTest()
	defer func() {
		s.Close()
	}()

	_, err := s.KeyValue(model.LastScannedSHA)
	assert.NotNil(t, err)

	err = s.SaveKeyValue(&model.KeyValue{
		Key:   model.LastScannedSHA,
		Value: "ea9ab7cc31b2599bf4afcfd639da516ca27a4780",
	})
	assert.Nil(t, err)

	kv, err := s.KeyValue(model.LastScannedSHA)
	assert.Nil(t, err)
	assert.Equal(t, "ea9ab7cc31b2599bf4afcfd639da516ca27a4780", kv.Value)

	err = s.SaveKeyValue(&model.KeyValue{
		Key:   model.LastScannedSHA,
		Value: "0017d995e32e3d1998395d971b969bcf682d2085",
	})
	assert.Nil(t, err)

	kv, err = s.KeyValue(model.LastScannedSHA)
	assert.Nil(t, err)
	assert.Equal(t, "0017d995e32e3d1998395d971b969bcf682d2085", kv.Value)
}
