package converse

import "context"

// Ask sends a single user turn with no history and returns the reply text.
func Ask(ctx context.Context, c Converser, cfg *InvocationConfig, blocks ...ContentBlock) (string, error) {
	resp, err := c.Converse(ctx, nil, NewUserTurn(blocks...), cfg)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}
