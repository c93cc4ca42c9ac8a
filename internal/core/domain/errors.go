package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ConflictError rejects a request that is well-formed but not allowed in the current state.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

var (
	ErrOrderNotFound          = &NotFoundError{Message: "Order not found"}
	ErrOrderedProductNotFound = &NotFoundError{Message: "Ordered Product not found"}
	ErrInventoryItemNotFound  = &NotFoundError{Message: "Inventory item not found"}

	ErrOnlyOrderedProduct     = &ConflictError{Message: "The only ordered product of an order can't be deleted. An Order must have at least one ordered product"}
	ErrDeleteNonPending       = &ConflictError{Message: "Only the Ordered products of Pending Orders can be deleted"}
	ErrUpdateNonPending       = &ConflictError{Message: "Only the Ordered products of Pending Orders can be updated"}
	ErrAddNonPending          = &ConflictError{Message: "Ordered products can only be added to Pending Orders"}
	ErrDuplicateInventoryItem = &ConflictError{Message: "An inventory item with this product name already exists"}
	ErrDuplicateRequest       = &ConflictError{Message: "duplicate request"}

	ErrInsufficientStock = errors.New("insufficient stock")
)

// Structural validation messages.
const (
	MsgRequired        = "This field is required."
	MsgInvalidInteger  = "A valid integer is required."
	MsgInvalidNumber   = "A valid number is required."
	MsgMinOne          = "Ensure this value is greater than or equal to 1."
	MsgInvalidDate     = "Date has wrong format. Use one of these formats instead: YYYY-MM-DD."
	MsgEmptyList       = "This list may not be empty."
	MsgPriceImmutable  = "Price of an ordered product can't be updated."
	MsgInvalidSortKey  = "Ordering must be one of id, order_date, total_price (optionally prefixed with '-')."
	MsgInvalidPage     = "Invalid page."
	MsgNotAString      = "Not a valid string."
	MsgNotAList        = "Expected a list of items."
	MsgNotAnObject     = "Invalid data. Expected a dictionary."
	MsgNegativeInteger = "Ensure this value is greater than or equal to 0."
)

type FieldErrors map[string][]string

func (f FieldErrors) Add(field, msg string) {
	f[field] = append(f[field], msg)
}

// ValidationError reports malformed input. Lists holds index-aligned errors for list-valued
// fields; an entry for a valid element is an empty FieldErrors.
type ValidationError struct {
	Fields FieldErrors
	Lists  map[string][]FieldErrors
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: FieldErrors{}, Lists: map[string][]FieldErrors{}}
}

func FieldError(field, msg string) *ValidationError {
	v := NewValidationError()
	v.Fields.Add(field, msg)
	return v
}

func (e *ValidationError) Empty() bool {
	if len(e.Fields) > 0 {
		return false
	}
	for _, list := range e.Lists {
		for _, fe := range list {
			if len(fe) > 0 {
				return false
			}
		}
	}
	return true
}

// OrNil returns nil when nothing was recorded, so callers can write `return v.OrNil()`.
func (e *ValidationError) OrNil() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields)+len(e.Lists))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	for k := range e.Lists {
		keys = append(keys, k+"[]")
	}
	sort.Strings(keys)
	return "validation failed: " + strings.Join(keys, ", ")
}

const (
	MsgDuplicateProduct = "Ordered products must be unique. Use the quantity field to specify multiple orders of same item."
	msgMissingProduct   = "'%s' doesn't exist in the Inventory."
	msgNotEnoughStock   = "Not enough products in stock to satisfy order for '%s'"
	msgPriceMismatch    = "Price isn't the same as that of inventory item for '%s'"
)

func MsgMissingProduct(name string) string { return fmt.Sprintf(msgMissingProduct, name) }
func MsgNotEnoughStock(name string) string { return fmt.Sprintf(msgNotEnoughStock, name) }
func MsgPriceMismatch(name string) string  { return fmt.Sprintf(msgPriceMismatch, name) }

// ProductErrors maps an ordered product's name to the reasons it was rejected.
type ProductErrors map[string][]string

func (p ProductErrors) Add(name, msg string) {
	p[name] = append(p[name], msg)
}

func (p ProductErrors) Error() string {
	names := make([]string, 0, len(p))
	for n := range p {
		names = append(names, n)
	}
	sort.Strings(names)
	return "ordered products rejected: " + strings.Join(names, ", ")
}
