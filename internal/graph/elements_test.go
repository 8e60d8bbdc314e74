package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eagraph/internal/model"
)

func elementCode(t *testing.T, err error) string {
	t.Helper()
	var ee *ElementError
	require.True(t, errors.As(err, &ee), "expected *ElementError, got %v", err)
	return ee.Code
}

func TestAddElement(t *testing.T) {
	s := NewElementStore()

	require.NoError(t, s.AddElement(model.Capability, model.NewElement("cap-1", model.Capability,
		model.A("name", model.String("Billing")))))

	el, ok := s.GetElementByID("cap-1")
	require.True(t, ok)
	assert.Equal(t, "Billing", el.Name())
	assert.Equal(t, model.Live, el.Status)
	assert.Equal(t, 1, s.Len())
}

func TestAddElementAdoptsCollectionType(t *testing.T) {
	s := NewElementStore()

	require.NoError(t, s.AddElement(model.Application, model.Element{ID: "app-1"}))

	el, ok := s.GetElementByID("app-1")
	require.True(t, ok)
	assert.Equal(t, model.Application, el.Type)
	assert.NotNil(t, el.Attributes)
}

func TestAddElementRejections(t *testing.T) {
	tests := []struct {
		name       string
		collection model.ElementType
		element    model.Element
		wantCode   string
	}{
		{"empty id", model.Capability, model.Element{Type: model.Capability}, ErrElementIDEmpty},
		{"blank id", model.Capability, model.Element{ID: "  ", Type: model.Capability}, ErrElementIDEmpty},
		{"duplicate in collection", model.Capability, model.NewElement("cap-1", model.Capability), ErrElementDuplicate},
		{"id used by other collection", model.Application, model.NewElement("cap-1", model.Application), ErrElementIDInUse},
		{"type does not match collection", model.Application, model.NewElement("x-1", model.Capability), ErrElementCollection},
		{"unknown collection", "Widget", model.Element{ID: "w-1"}, ErrElementTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewElementStore()
			require.NoError(t, s.AddElement(model.Capability, model.NewElement("cap-1", model.Capability)))

			err := s.AddElement(tt.collection, tt.element)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, elementCode(t, err))
			assert.Equal(t, 1, s.Len(), "rejected insert must not change the store")
		})
	}
}

func TestGetElementsByTypeSortedCopies(t *testing.T) {
	s := NewElementStore()
	require.NoError(t, s.AddElement(model.Capability, model.NewElement("cap-b", model.Capability)))
	require.NoError(t, s.AddElement(model.Capability, model.NewElement("cap-a", model.Capability)))
	require.NoError(t, s.AddElement(model.Application, model.NewElement("app-1", model.Application)))

	caps := s.GetElementsByType(model.Capability)
	require.Len(t, caps, 2)
	assert.Equal(t, "cap-a", caps[0].ID)
	assert.Equal(t, "cap-b", caps[1].ID)

	caps[0].Attributes["name"] = model.String("mutated")
	again, _ := s.GetElementByID("cap-a")
	assert.Empty(t, again.Name(), "callers must receive copies")

	assert.Empty(t, s.GetElementsByType(model.Technology))
}

func TestAddElementStoresCopy(t *testing.T) {
	s := NewElementStore()
	el := model.NewElement("cap-1", model.Capability, model.A("name", model.String("Billing")))
	require.NoError(t, s.AddElement(model.Capability, el))

	el.Attributes["name"] = model.String("changed after insert")

	stored, _ := s.GetElementByID("cap-1")
	assert.Equal(t, "Billing", stored.Name())
}

func TestTombstoneKeepsElementAddressable(t *testing.T) {
	s := NewElementStore()
	require.NoError(t, s.AddElement(model.Application, model.NewElement("app-1", model.Application)))

	require.NoError(t, s.Tombstone("app-1"))
	require.NoError(t, s.Tombstone("app-1"), "tombstoning twice is a no-op")

	el, ok := s.GetElementByID("app-1")
	require.True(t, ok)
	assert.Equal(t, model.Tombstoned, el.Status)
	assert.False(t, el.Live())
	assert.Len(t, s.GetElementsByType(model.Application), 1)

	require.NoError(t, s.Revive("app-1"))
	el, _ = s.GetElementByID("app-1")
	assert.True(t, el.Live())

	err := s.Tombstone("missing")
	assert.Equal(t, ErrElementNotFound, elementCode(t, err))
}

func TestAddElementMapsDeletedFlagToStatus(t *testing.T) {
	s := NewElementStore()

	require.NoError(t, s.AddElement(model.Application, model.NewElement("app-1", model.Application,
		model.A(model.AttrDeleted, model.Bool(true)),
		model.A(model.AttrName, model.String("CRM")))))
	require.NoError(t, s.AddElement(model.Application, model.NewElement("app-2", model.Application,
		model.A(model.AttrDeleted, model.Bool(false)))))

	el, _ := s.GetElementByID("app-1")
	assert.Equal(t, model.Tombstoned, el.Status)
	assert.Equal(t, model.Object{model.AttrName: model.String("CRM")}, el.Attributes)

	el, _ = s.GetElementByID("app-2")
	assert.Equal(t, model.Live, el.Status)
	assert.Empty(t, el.Attributes)

	err := s.AddElement(model.Application, model.NewElement("app-3", model.Application,
		model.A(model.AttrDeleted, model.String("yes"))))
	assert.Equal(t, ErrElementReservedAttr, elementCode(t, err))
	_, ok := s.GetElementByID("app-3")
	assert.False(t, ok)
}

func TestSetAttribute(t *testing.T) {
	s := NewElementStore()
	require.NoError(t, s.AddElement(model.Application, model.NewElement("app-1", model.Application)))

	require.NoError(t, s.SetAttribute("app-1", "name", model.String("CRM")))
	el, _ := s.GetElementByID("app-1")
	assert.Equal(t, "CRM", el.Name())

	require.NoError(t, s.SetAttribute("app-1", "name", nil))
	el, _ = s.GetElementByID("app-1")
	assert.Empty(t, el.Name())

	err := s.SetAttribute("app-1", model.AttrDeleted, model.Bool(true))
	assert.Equal(t, ErrElementReservedAttr, elementCode(t, err))

	err = s.SetAttribute("missing", "name", model.String("x"))
	assert.Equal(t, ErrElementNotFound, elementCode(t, err))
}
