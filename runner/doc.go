// Package runner drives task execution: it polls the queue on behalf of a
// set of registered agents and walks each claimed task through its
// lifecycle, classifying failures as retryable or fatal.
package runner
