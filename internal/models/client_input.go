package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ClientInput accepts the client either as a bare name string or as an
// object. Normalize produces the stored form.
type ClientInput struct {
	Name    *string `json:"name"`
	Email   *string `json:"email"`
	Address *string `json:"address"`
	Phone   *string `json:"phone"`
}

func (c *ClientInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = ClientInput{}
		return nil
	}
	switch data[0] {
	case '"':
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*c = ClientInput{Name: &name}
		return nil
	case '{':
		type plain ClientInput
		var p plain
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		*c = ClientInput(p)
		return nil
	}
	return fmt.Errorf("client must be a string or an object")
}

// ClientName builds a ClientInput holding only a name.
func ClientName(name string) ClientInput {
	return ClientInput{Name: &name}
}

// Normalize returns the canonical client. Fields absent from the input keep
// their value in base.
func (c ClientInput) Normalize(base Client) Client {
	out := base
	if c.Name != nil {
		out.Name = strings.TrimSpace(*c.Name)
	}
	if c.Email != nil {
		out.Email = strings.TrimSpace(*c.Email)
	}
	if c.Address != nil {
		out.Address = *c.Address
	}
	if c.Phone != nil {
		out.Phone = strings.TrimSpace(*c.Phone)
	}
	return out
}
