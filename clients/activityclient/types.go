package activityclient

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// JSON keys used by the activities collection.
const (
	keyObjectID        = "objectId"
	keyDescripcion     = "descripcion"
	keyTipoActividad   = "tipo_actividad"
	keyTitulo          = "titulo"
	keyEmocionAsociada = "emocion_asociada"
)

// Activity is a record in the remote activities collection.
// ObjectID is assigned by the server and is never sent back by the client.
type Activity struct {
	ObjectID        string
	Descripcion     string
	TipoActividad   string
	Titulo          string
	EmocionAsociada string // objectId of the linked emotion record

	// Extra holds any keys the server returned that are not modelled above
	// (created, updated, ownerId, ___class, ...).
	Extra map[string]json.RawMessage
}

// UnmarshalJSON decodes the named fields and keeps everything else in Extra.
func (a *Activity) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	known := []struct {
		key string
		dst *string
	}{
		{keyObjectID, &a.ObjectID},
		{keyDescripcion, &a.Descripcion},
		{keyTipoActividad, &a.TipoActividad},
		{keyTitulo, &a.Titulo},
		{keyEmocionAsociada, &a.EmocionAsociada},
	}
	for _, k := range known {
		v, ok := raw[k.key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(v, k.dst); err != nil {
			return fmt.Errorf("field %q: %w", k.key, err)
		}
		delete(raw, k.key)
	}

	if len(raw) > 0 {
		a.Extra = raw
	}
	return nil
}

// MarshalJSON emits the named fields merged with Extra.
func (a Activity) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(a.Extra)+5)
	for k, v := range a.Extra {
		out[k] = v
	}
	if a.ObjectID != "" {
		out[keyObjectID] = a.ObjectID
	}
	out[keyDescripcion] = a.Descripcion
	out[keyTipoActividad] = a.TipoActividad
	out[keyTitulo] = a.Titulo
	out[keyEmocionAsociada] = a.EmocionAsociada
	return json.Marshal(out)
}

// Fields is the set of values sent in a create or update request.
// Nil fields are left out of the payload, never sent as null.
type Fields struct {
	Descripcion     *string
	TipoActividad   *string
	Titulo          *string
	EmocionAsociada *string

	// Extra carries additional keys for the payload. Nil values are dropped
	// and a named field that is set takes precedence over the same key here.
	Extra map[string]any
}

// String returns a pointer to s, for populating Fields.
func String(s string) *string {
	return &s
}

// FieldsFrom returns Fields with all four named values taken from a.
func FieldsFrom(a Activity) Fields {
	return Fields{
		Descripcion:     String(a.Descripcion),
		TipoActividad:   String(a.TipoActividad),
		Titulo:          String(a.Titulo),
		EmocionAsociada: String(a.EmocionAsociada),
	}
}

// Payload builds the JSON object for the request body.
// objectId is always stripped since only the server may assign it.
func (f Fields) Payload() map[string]any {
	payload := make(map[string]any)
	for k, v := range f.Extra {
		if v == nil || k == keyObjectID {
			continue
		}
		payload[k] = v
	}

	named := []struct {
		key string
		val *string
	}{
		{keyDescripcion, f.Descripcion},
		{keyTipoActividad, f.TipoActividad},
		{keyTitulo, f.Titulo},
		{keyEmocionAsociada, f.EmocionAsociada},
	}
	for _, n := range named {
		if n.val != nil {
			payload[n.key] = *n.val
		}
	}
	return payload
}

// IsEmpty reports whether the payload would have no keys.
func (f Fields) IsEmpty() bool {
	return len(f.Payload()) == 0
}

// Collection is the decoded response of a list call. Any JSON shape is
// accepted; Items is only populated when the response is an array, and
// holds the elements that decoded as activities.
type Collection struct {
	Raw   json.RawMessage
	Items []Activity

	count  int
	isList bool
}

// Len returns the number of elements and whether the response was a list.
func (c Collection) Len() (int, bool) {
	return c.count, c.isList
}

// MarshalJSON returns the raw response unchanged.
func (c Collection) MarshalJSON() ([]byte, error) {
	if len(c.Raw) == 0 {
		return []byte("null"), nil
	}
	return c.Raw, nil
}

func decodeCollection(body []byte) (Collection, error) {
	trimmed := bytes.TrimSpace(body)
	if !json.Valid(trimmed) {
		return Collection{}, fmt.Errorf("failed to unmarshal response: invalid JSON")
	}
	c := Collection{Raw: json.RawMessage(trimmed)}
	if trimmed[0] != '[' {
		return c, nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return Collection{}, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	c.isList = true
	c.count = len(elems)
	for _, e := range elems {
		var a Activity
		if err := json.Unmarshal(e, &a); err != nil {
			continue
		}
		c.Items = append(c.Items, a)
	}
	return c, nil
}
