package source

import "strings"

type EntityType string

const (
	EntityCustomers EntityType = "customers"
	EntityProducts  EntityType = "products"
	EntityOrders    EntityType = "orders"
)

// AllEntityTypes returns the entity types in dependency order: orders link to
// customers, so customers are synced first.
func AllEntityTypes() []EntityType {
	return []EntityType{EntityCustomers, EntityProducts, EntityOrders}
}

func ParseEntityType(value string) (EntityType, error) {
	switch EntityType(strings.ToLower(strings.TrimSpace(value))) {
	case EntityCustomers:
		return EntityCustomers, nil
	case EntityProducts:
		return EntityProducts, nil
	case EntityOrders:
		return EntityOrders, nil
	default:
		return "", ErrUnsupportedEntityType
	}
}

func (e EntityType) String() string {
	return string(e)
}
