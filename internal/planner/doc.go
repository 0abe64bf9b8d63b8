// Package planner composes the wedding planner: one reconciling store per
// entity kind, the budget target, the derived summary and the wiring that
// picks a collaborator from configuration.
package planner
