package constraint

import "fmt"

// RoleKey is the namespace key consulted by HasRole.
const RoleKey = "role"

// HasRole requires the namespace role to equal role.
func HasRole[T any](role string) Predicate[T] {
	return func(_ T, ns Namespace) error {
		if got := ns.String(RoleKey); got != role {
			return Violate("Unauthorized. Missing the `%s` role.", role).
				WithMetadata(map[string]any{"required": role, "actual": got})
		}
		return nil
	}
}

// NamespaceEquals requires ns[key] to equal want.
func NamespaceEquals[T any](key string, want any) Predicate[T] {
	return func(_ T, ns Namespace) error {
		got, ok := ns.Value(key)
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return Violate("expected %s to be %v", key, want)
		}
		return nil
	}
}

// Check lifts a boolean guard into a predicate failing with message.
func Check[T any](guard func(T) bool, message string) Predicate[T] {
	return func(item T, _ Namespace) error {
		if guard == nil || !guard(item) {
			return Violate("%s", message)
		}
		return nil
	}
}

// CheckWith lifts a boolean guard that also reads the namespace.
func CheckWith[T any](guard func(T, Namespace) bool, message string) Predicate[T] {
	return func(item T, ns Namespace) error {
		if guard == nil || !guard(item, ns) {
			return Violate("%s", message)
		}
		return nil
	}
}
