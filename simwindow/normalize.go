// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package simwindow

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// normalize applies mode to m in place and then zeros the diagonal, per the
// three modes' shared final step.
func normalize(m *mat.SymDense, mode Mode) {
	n, _ := m.Dims()
	switch mode {
	case AddMin:
		min := 0.0
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				if v := -m.At(i, j); v < min {
					min = v
				}
			}
		}
		shift := math.Abs(min)
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				m.SetSym(i, j, -m.At(i, j)+shift)
			}
		}
	case Exponentiate:
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				m.SetSym(i, j, 1/(1+math.Exp(m.At(i, j))))
			}
		}
	case ScaleMax1:
		max := 0.0
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				if v := m.At(i, j); v > max {
					max = v
				}
			}
		}
		if max != 0 {
			for i := 0; i < n; i++ {
				for j := i + 1; j < n; j++ {
					m.SetSym(i, j, m.At(i, j)/max)
				}
			}
		}
	}

	for i := 0; i < n; i++ {
		m.SetSym(i, i, 0)
	}
}
