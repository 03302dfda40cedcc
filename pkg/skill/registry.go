package skill

import "context"

// Registry holds the skills in routing order and hands out the optional
// capability views (daemons, HTTP routes, device listings) the rest of
// the assistant wires up.
type Registry struct {
	skills []Skill
}

// NewRegistry creates a registry with the given skills in routing order.
func NewRegistry(skills ...Skill) *Registry {
	return &Registry{skills: skills}
}

// Register appends a skill to the routing order.
func (r *Registry) Register(s Skill) {
	r.skills = append(r.skills, s)
}

// All returns the skills in routing order. Callers must not mutate it.
func (r *Registry) All() []Skill {
	return r.skills
}

// StartDaemons launches the background pollers of every daemon skill.
func (r *Registry) StartDaemons(ctx context.Context) {
	for _, s := range r.skills {
		if d, ok := s.(Daemon); ok {
			d.StartDaemon(ctx)
		}
	}
}

// StatusProviders returns the skills that can report device status.
func (r *Registry) StatusProviders() []StatusProvider {
	var out []StatusProvider
	for _, s := range r.skills {
		if p, ok := s.(StatusProvider); ok {
			out = append(out, p)
		}
	}
	return out
}

// Listers returns the skills that expose device listings.
func (r *Registry) Listers() []DeviceLister {
	var out []DeviceLister
	for _, s := range r.skills {
		if l, ok := s.(DeviceLister); ok {
			out = append(out, l)
		}
	}
	return out
}

// Registrars returns the skills that add their own HTTP routes.
func (r *Registry) Registrars() []RouteRegistrar {
	var out []RouteRegistrar
	for _, s := range r.skills {
		if rr, ok := s.(RouteRegistrar); ok {
			out = append(out, rr)
		}
	}
	return out
}
