// Package team manages teams, memberships, and the team task graph.
//
// Teams carry exactly one lead; the lead's membership row is created with the
// team and cannot be removed. Tasks move through a small state machine
// (pending, in_progress, blocked, completed) driven by their blocking set:
// a task with an uncompleted blocker is blocked, and completing a task
// re-evaluates every task that listed it, inside the same transaction.
//
// The state machine itself lives in the store so the transitions and the
// cascade stay transactional; this package shapes parameters, assigns ids,
// and is the surface the HTTP layer calls.
package team
