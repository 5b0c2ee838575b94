package model

// LinearModel 一元最小二乘回归: y = Slope*x + Intercept
// 通过累计和求解，支持增量更新
type LinearModel struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	N         float64 `json:"n"`
	SumX      float64 `json:"sum_x"`
	SumY      float64 `json:"sum_y"`
	SumXY     float64 `json:"sum_xy"`
	SumXX     float64 `json:"sum_xx"`
}

func NewLinearModel() *LinearModel {
	return &LinearModel{}
}

// Train fits on paired samples, discarding any previous state.
func (lm *LinearModel) Train(xs, ys []float64) error {
	if err := checkShape(len(xs), len(ys)); err != nil {
		return err
	}
	lm.N = float64(len(xs))
	lm.SumX, lm.SumY, lm.SumXY, lm.SumXX = 0, 0, 0, 0

	for i, x := range xs {
		y := ys[i]
		lm.SumX += x
		lm.SumY += y
		lm.SumXY += x * y
		lm.SumXX += x * x
	}
	lm.solve()
	return nil
}

// Update folds one more sample into the fit.
func (lm *LinearModel) Update(x, y float64) {
	lm.N += 1
	lm.SumX += x
	lm.SumY += y
	lm.SumXY += x * y
	lm.SumXX += x * x

	lm.solve()
}

func (lm *LinearModel) solve() {
	if lm.N == 0 {
		lm.Slope, lm.Intercept = 0, 0
		return
	}
	denominator := lm.N*lm.SumXX - lm.SumX*lm.SumX
	if denominator == 0 {
		// x 全部相同：退化为均值
		lm.Slope = 0
		lm.Intercept = lm.SumY / lm.N
	} else {
		lm.Slope = (lm.N*lm.SumXY - lm.SumX*lm.SumY) / denominator
		lm.Intercept = (lm.SumY - lm.Slope*lm.SumX) / lm.N
	}
}

// Trained reports whether at least one sample has been fitted.
func (lm *LinearModel) Trained() bool {
	return lm.N > 0
}

func (lm *LinearModel) Predict(x float64) float64 {
	return lm.Slope*x + lm.Intercept
}
