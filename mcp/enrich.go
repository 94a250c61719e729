package mcp

import (
	"context"
	"strings"

	"storechat/config"
)

// enrichArguments folds ambient context the model does not know into a tool
// call's arguments: the site/tenant identifier, the authorization
// credential, and, for cart-related tools only, the active cart id fetched
// lazily. Caller-supplied values are never overwritten.
func (c *Client) enrichArguments(ctx context.Context, toolName string, args map[string]any) map[string]any {
	if c.cfg.SiteID != "" {
		if _, ok := args["siteId"]; !ok {
			args["siteId"] = c.cfg.SiteID
		}
	}
	if c.cfg.AuthToken != "" {
		if _, ok := args["authToken"]; !ok {
			args["authToken"] = c.cfg.AuthToken
		}
	}

	if IsCartTool(toolName) && c.cartResolver != nil {
		if _, ok := args["cartId"]; !ok {
			cartID, err := c.cartResolver(ctx)
			switch {
			case err != nil:
				// No cart is fine: downstream can create one.
				if config.DebugLog != nil {
					config.DebugLog.Printf("[MCP] Cart lookup failed for %s, proceeding without cartId: %v", toolName, err)
				}
			case cartID != "":
				args["cartId"] = cartID
			}
		}
	}

	return args
}

// IsCartTool reports whether a tool name matches the cart/checkout/order
// patterns that need the active cart identifier.
func IsCartTool(name string) bool {
	lowered := strings.ToLower(name)
	return strings.Contains(lowered, "cart") ||
		strings.Contains(lowered, "checkout") ||
		strings.Contains(lowered, "order")
}

// IsOrderPlacementTool reports whether a tool name is an order-placement
// action ("place-order", "place_order", "placeOrder", ...). Only failures
// of these tools can raise the terms-acceptance gate.
func IsOrderPlacementTool(name string) bool {
	lowered := strings.ToLower(name)
	return strings.Contains(lowered, "place") && strings.Contains(lowered, "order")
}
