// Package scm defines the backend-neutral repository model: the repository
// value, command and feature discriminators, read models, requests, the
// provider contract every backend implements, and the error taxonomy.
package scm

import "fmt"

// Repository identifies a repository owned by the surrounding system.
// Commands receive it by value and never mutate it.
type Repository struct {
	ID                string `json:"id"`
	Namespace         string `json:"namespace"`
	Name              string `json:"name"`
	Type              string `json:"type"`
	Archived          bool   `json:"archived"`
	HealthCheckFailed bool   `json:"healthCheckFailed"`
}

// NamespaceAndName returns "namespace/name".
func (r Repository) NamespaceAndName() string {
	return fmt.Sprintf("%s/%s", r.Namespace, r.Name)
}

func (r Repository) String() string {
	return fmt.Sprintf("%s (%s, %s)", r.NamespaceAndName(), r.Type, r.ID)
}
