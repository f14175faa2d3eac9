package api

import (
	"context"
	"net/http"
)

// All returns every entry stored for the token.
func (c *Client) All(ctx context.Context) (map[string]any, error) {
	return c.Do(ctx, &Request{Endpoint: EndpointAll, Method: http.MethodGet})
}

// Get returns the entry stored under name.
func (c *Client) Get(ctx context.Context, name string) (map[string]any, error) {
	return c.Do(ctx, &Request{Endpoint: EndpointGet, Method: http.MethodGet, Name: name, HasName: true})
}

// Delete removes the entry stored under name.
func (c *Client) Delete(ctx context.Context, name string) (map[string]any, error) {
	return c.Do(ctx, &Request{Endpoint: EndpointDelete, Method: http.MethodDelete, Name: name, HasName: true})
}

// Set stores value under name.
func (c *Client) Set(ctx context.Context, name string, value any) (map[string]any, error) {
	return c.Do(ctx, &Request{
		Endpoint: EndpointSet,
		Method:   http.MethodPost,
		Name:     name,
		HasName:  true,
		Body:     &ValueBody{Value: value},
	})
}

// Add increments the numeric entry stored under name by delta.
func (c *Client) Add(ctx context.Context, name string, delta int64) (map[string]any, error) {
	return c.Do(ctx, &Request{
		Endpoint: EndpointAdd,
		Method:   http.MethodPatch,
		Name:     name,
		HasName:  true,
		Body:     &ValueBody{Value: delta},
	})
}

// Subtract decrements the numeric entry stored under name by delta.
func (c *Client) Subtract(ctx context.Context, name string, delta int64) (map[string]any, error) {
	return c.Do(ctx, &Request{
		Endpoint: EndpointSubtract,
		Method:   http.MethodPatch,
		Name:     name,
		HasName:  true,
		Body:     &ValueBody{Value: delta},
	})
}
