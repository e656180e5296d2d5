// Package trace manages the execution trace forest: append-only records that
// optionally point at a parent trace.
//
// The parent link is fixed at creation and must name a trace that already
// exists, so every tree in the forest is acyclic by construction and walking
// toward the root always terminates. Ancestors and Subtree expose those walks
// as lazy iterators; callers that stop early never read the rest of the
// chain.
package trace
