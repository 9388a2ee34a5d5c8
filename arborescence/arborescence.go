// Copyright 2026 The docstruct Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package arborescence finds maximum spanning arborescences in dense
// weight matrices using the Chu-Liu-Edmonds algorithm.
package arborescence

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrInvalidInput is returned for weight matrices that cannot be decoded.
var ErrInvalidInput = errors.New("invalid weight matrix")

// An Arborescence is a spanning tree rooted at node 0. Heads[i-1] is the
// parent of node i.
type Arborescence struct {
	Heads []int
	Score float64
}

// Solve returns the maximum spanning arborescence of the weight matrix.
// Entry (u, v) is the weight of the edge from u to v, node 0 is the root.
// Edges into the root and self loops are never part of the tree.
func Solve(weights mat.Matrix) (Arborescence, error) {
	w, err := denseWeights(weights)
	if err != nil {
		return Arborescence{}, err
	}

	n := len(w)
	if n == 1 {
		return Arborescence{Heads: []int{}}, nil
	}

	heads := decode(w)

	var score float64
	for v := 1; v < n; v++ {
		score += w[heads[v]][v]
	}

	return Arborescence{
		Heads: heads[1:],
		Score: score,
	}, nil
}

func denseWeights(weights mat.Matrix) ([][]float64, error) {
	rows, cols := weights.Dims()
	if rows != cols {
		return nil, fmt.Errorf("%w: matrix is %dx%d", ErrInvalidInput, rows, cols)
	}
	if rows < 1 {
		return nil, fmt.Errorf("%w: empty matrix", ErrInvalidInput)
	}

	w := make([][]float64, rows)
	for u := range w {
		w[u] = make([]float64, cols)
		for v := range w[u] {
			val := weights.At(u, v)
			if math.IsNaN(val) || math.IsInf(val, 0) {
				return nil, fmt.Errorf("%w: non-finite weight at (%d, %d)", ErrInvalidInput, u, v)
			}
			if val < 0 {
				return nil, fmt.Errorf("%w: negative weight %g at (%d, %d)", ErrInvalidInput, val, u, v)
			}
			w[u][v] = val
		}
	}

	return w, nil
}

// decode returns the head of every node, heads[0] is -1.
func decode(w [][]float64) []int {
	n := len(w)
	heads := bestIncoming(w)

	cycle := findCycle(heads)
	if cycle == nil {
		return heads
	}

	inCycle := make([]bool, n)
	maxInCycle := math.Inf(-1)
	for _, v := range cycle {
		inCycle[v] = true
		maxInCycle = math.Max(maxInCycle, w[heads[v]][v])
	}

	// Nodes of the contracted graph. The cycle becomes the last node.
	outside := make([]int, 0, n-len(cycle))
	for v := 0; v < n; v++ {
		if !inCycle[v] {
			outside = append(outside, v)
		}
	}
	m := len(outside) + 1
	c := m - 1

	contracted := make([][]float64, m)
	for i := range contracted {
		contracted[i] = make([]float64, m)
	}

	// enterTarget[i]: the cycle node reached by the best edge from outside[i].
	// leaveSource[j]: the cycle node of the best edge to outside[j].
	enterTarget := make([]int, m-1)
	leaveSource := make([]int, m-1)

	for i, u := range outside {
		for j, v := range outside {
			contracted[i][j] = w[u][v]
		}

		best := math.Inf(-1)
		for _, v := range cycle {
			if s := w[u][v] - w[heads[v]][v] + maxInCycle; s > best {
				best = s
				enterTarget[i] = v
			}
		}
		contracted[i][c] = best

		best = math.Inf(-1)
		for _, v := range cycle {
			if s := w[v][u]; s > best {
				best = s
				leaveSource[i] = v
			}
		}
		contracted[c][i] = best
	}

	sub := decode(contracted)

	for i, v := range outside {
		if v == 0 {
			continue
		}
		if sub[i] == c {
			heads[v] = leaveSource[i]
		} else {
			heads[v] = outside[sub[i]]
		}
	}

	entering := sub[c]
	heads[enterTarget[entering]] = outside[entering]

	return heads
}

// bestIncoming picks the first maximum-weight incoming edge of every
// non-root node, scanning sources in increasing order.
func bestIncoming(w [][]float64) []int {
	n := len(w)
	heads := make([]int, n)
	heads[0] = -1

	for v := 1; v < n; v++ {
		best := math.Inf(-1)
		for u := 0; u < n; u++ {
			if u == v {
				continue
			}
			if w[u][v] > best {
				best = w[u][v]
				heads[v] = u
			}
		}
	}

	return heads
}

// findCycle returns the nodes of the first cycle in the head assignment,
// or nil when the assignment is a tree.
func findCycle(heads []int) []int {
	n := len(heads)

	const (
		unvisited = iota
		onPath
		done
	)

	state := make([]int, n)
	state[0] = done

	for start := 1; start < n; start++ {
		v := start
		for state[v] == unvisited {
			state[v] = onPath
			v = heads[v]
		}

		if state[v] == onPath {
			cycle := []int{v}
			for u := heads[v]; u != v; u = heads[u] {
				cycle = append(cycle, u)
			}
			return cycle
		}

		for v = start; state[v] == onPath; v = heads[v] {
			state[v] = done
		}
	}

	return nil
}

// Validate checks that heads (the parents of nodes 1..n) form a tree
// rooted at node 0.
func Validate(heads []int) error {
	n := len(heads) + 1

	for i, h := range heads {
		if h < 0 || h >= n {
			return fmt.Errorf("node %d has out of range head %d", i+1, h)
		}
		if h == i+1 {
			return fmt.Errorf("node %d is its own head", i+1)
		}
	}

	all := append([]int{-1}, heads...)
	if cycle := findCycle(all); cycle != nil {
		return fmt.Errorf("cycle through nodes %v", cycle)
	}

	return nil
}
