package service

import "errors"

var (
	ErrProductUnavailable = errors.New("product is not available")
	ErrAmbiguousSelection = errors.New("selection matches several variants")
	ErrNoMatch            = errors.New("no variant matches selection")
	ErrNoPrice            = errors.New("product has no purchasable price")
	ErrStaleUpdate        = errors.New("update superseded by a newer request")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrCartNotReady       = errors.New("cart is not ready for checkout")
	ErrInvalidWebhook     = errors.New("invalid webhook")
)
