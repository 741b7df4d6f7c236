package api

type Greeting struct {
	ID      int64  `json:"id"`
	Content string `json:"content"`
}

type EnvResponse struct {
	Precedence []string            `json:"precedence"`
	Properties map[string]Property `json:"properties"`
	Degraded   []string            `json:"degraded,omitempty"`
}

type Property struct {
	Value  string `json:"value"`
	Source string `json:"source"`
}
