package advisor

// RequestOptions mirrors the Ollama generation-options payload recovered
// from the reference Ollama client: speed/quality knobs passed through on
// every request, independent of model or role.
type RequestOptions struct {
	NumPredict    int     `json:"num_predict"`
	Temperature   float64 `json:"temperature"`
	TopK          int     `json:"top_k"`
	TopP          float64 `json:"top_p"`
	NumCtx        int     `json:"num_ctx"`
	NumBatch      int     `json:"num_batch"`
	RepeatPenalty float64 `json:"repeat_penalty"`
	Mirostat      int     `json:"mirostat"`
	MirostatEta   float64 `json:"mirostat_eta"`
	MirostatTau   float64 `json:"mirostat_tau"`
}

// balancedOptions favours analysis quality over raw speed, matching the
// reference client's "balanced mode" preset.
func balancedOptions() RequestOptions {
	return RequestOptions{
		NumPredict:    200,
		Temperature:   0.3,
		TopK:          20,
		TopP:          0.9,
		NumCtx:        2048,
		NumBatch:      16,
		RepeatPenalty: 1.1,
		Mirostat:      2,
		MirostatEta:   0.1,
		MirostatTau:   5.0,
	}
}
