package integration

import "fmt"

// Typed, per-platform views over MarketplaceConnection. Each adapter reads only
// its own view; Complete reports whether the calls of that platform can be made.

// ShopifyCredentials is the Shopify Admin API view
type ShopifyCredentials struct {
	ShopDomain  string
	AccessToken string
	APIVersion  string `mapstructure:"api_version"`
}

// Complete reports whether a shop domain and token are present
func (c ShopifyCredentials) Complete() bool {
	return c.ShopDomain != "" && c.AccessToken != ""
}

// EbayCredentials is the eBay Sell API view
type EbayCredentials struct {
	AccessToken         string
	RefreshToken        string
	MarketplaceID       string `mapstructure:"marketplace_id"`
	FulfillmentPolicyID string `mapstructure:"fulfillment_policy_id"`
	PaymentPolicyID     string `mapstructure:"payment_policy_id"`
	ReturnPolicyID      string `mapstructure:"return_policy_id"`
}

// Complete reports whether a token is present
func (c EbayCredentials) Complete() bool {
	return c.AccessToken != "" || c.RefreshToken != ""
}

// Policies returns the stored business policy ids
func (c EbayCredentials) Policies() BusinessPolicies {
	return BusinessPolicies{
		FulfillmentPolicyID: c.FulfillmentPolicyID,
		PaymentPolicyID:     c.PaymentPolicyID,
		ReturnPolicyID:      c.ReturnPolicyID,
	}
}

// AmazonCredentials is the Selling Partner API view
type AmazonCredentials struct {
	AccessToken   string
	RefreshToken  string
	SellerID      string `mapstructure:"seller_id"`
	MarketplaceID string `mapstructure:"marketplace_id"`
	Region        string `mapstructure:"region"`
}

// Complete reports whether a seller id and a token are present
func (c AmazonCredentials) Complete() bool {
	return c.SellerID != "" && (c.AccessToken != "" || c.RefreshToken != "")
}

// EtsyCredentials is the Etsy Open API v3 view
type EtsyCredentials struct {
	AccessToken  string
	RefreshToken string
	ShopID       string `mapstructure:"shop_id"`
}

// Complete reports whether a shop id and a token are present
func (c EtsyCredentials) Complete() bool {
	return c.ShopID != "" && (c.AccessToken != "" || c.RefreshToken != "")
}

// WalmartCredentials is the Walmart Marketplace API view
type WalmartCredentials struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

// Complete reports whether the client credential pair is present
func (c WalmartCredentials) Complete() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// WooCommerceCredentials is the WooCommerce REST API view
type WooCommerceCredentials struct {
	StoreURL       string
	ConsumerKey    string `mapstructure:"consumer_key"`
	ConsumerSecret string `mapstructure:"consumer_secret"`
}

// Complete reports whether the store url and key pair are present
func (c WooCommerceCredentials) Complete() bool {
	return c.StoreURL != "" && c.ConsumerKey != "" && c.ConsumerSecret != ""
}

// BigCommerceCredentials is the BigCommerce v3 API view
type BigCommerceCredentials struct {
	AccessToken string
	StoreHash   string `mapstructure:"store_hash"`
}

// Complete reports whether the store hash and token are present
func (c BigCommerceCredentials) Complete() bool {
	return c.StoreHash != "" && c.AccessToken != ""
}

// ShopifyCredentials decodes the Shopify view
func (c *MarketplaceConnection) ShopifyCredentials() (ShopifyCredentials, error) {
	out := ShopifyCredentials{APIVersion: "2024-01"}
	if err := c.decodeCredentials(&out); err != nil {
		return ShopifyCredentials{}, err
	}
	out.ShopDomain = c.ShopDomain
	out.AccessToken = c.AccessToken
	return out, nil
}

// EbayCredentials decodes the eBay view
func (c *MarketplaceConnection) EbayCredentials() (EbayCredentials, error) {
	out := EbayCredentials{MarketplaceID: "EBAY_US"}
	if err := c.decodeCredentials(&out); err != nil {
		return EbayCredentials{}, err
	}
	out.AccessToken = c.AccessToken
	out.RefreshToken = c.RefreshToken
	return out, nil
}

// AmazonCredentials decodes the Amazon view
func (c *MarketplaceConnection) AmazonCredentials() (AmazonCredentials, error) {
	out := AmazonCredentials{MarketplaceID: "ATVPDKIKX0DER", Region: "na"}
	if err := c.decodeCredentials(&out); err != nil {
		return AmazonCredentials{}, err
	}
	if out.SellerID == "" {
		out.SellerID = c.ExternalStoreID
	}
	out.AccessToken = c.AccessToken
	out.RefreshToken = c.RefreshToken
	return out, nil
}

// EtsyCredentials decodes the Etsy view
func (c *MarketplaceConnection) EtsyCredentials() (EtsyCredentials, error) {
	var out EtsyCredentials
	if err := c.decodeCredentials(&out); err != nil {
		return EtsyCredentials{}, err
	}
	if out.ShopID == "" {
		out.ShopID = c.ExternalStoreID
	}
	out.AccessToken = c.AccessToken
	out.RefreshToken = c.RefreshToken
	return out, nil
}

// WalmartCredentials decodes the Walmart view
func (c *MarketplaceConnection) WalmartCredentials() (WalmartCredentials, error) {
	var out WalmartCredentials
	if err := c.decodeCredentials(&out); err != nil {
		return WalmartCredentials{}, err
	}
	return out, nil
}

// WooCommerceCredentials decodes the WooCommerce view
func (c *MarketplaceConnection) WooCommerceCredentials() (WooCommerceCredentials, error) {
	var out WooCommerceCredentials
	if err := c.decodeCredentials(&out); err != nil {
		return WooCommerceCredentials{}, err
	}
	out.StoreURL = c.ShopDomain
	return out, nil
}

// BigCommerceCredentials decodes the BigCommerce view
func (c *MarketplaceConnection) BigCommerceCredentials() (BigCommerceCredentials, error) {
	var out BigCommerceCredentials
	if err := c.decodeCredentials(&out); err != nil {
		return BigCommerceCredentials{}, err
	}
	if out.StoreHash == "" {
		out.StoreHash = c.ExternalStoreID
	}
	out.AccessToken = c.AccessToken
	return out, nil
}

func (c *MarketplaceConnection) decodeCredentials(out any) error {
	if err := decodeMap(c.Credentials, out); err != nil {
		return fmt.Errorf("decode %s credentials: %w", c.Platform, err)
	}
	return nil
}
