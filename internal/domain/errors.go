package domain

import "errors"

var (
	ErrBrandNotFound       = errors.New("brand not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrBoothNotFound       = errors.New("booth not found")
	ErrIngredientNotFound  = errors.New("ingredient not found")
	ErrMenuItemNotFound    = errors.New("menu item not found")
	ErrBoothStockNotFound  = errors.New("booth stock entry not found")
	ErrSaleNotFound        = errors.New("sale not found")
	ErrTransactionNotFound = errors.New("accounting transaction not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
)
