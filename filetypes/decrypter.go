package filetypes

import "github.com/GlintPay/gkps/sops"

type Decrypter interface {
	Decrypt(data []byte) ([]byte, error)
}

// SopsDecrypter decrypts SOPS-encrypted documents and passes anything else through untouched
type SopsDecrypter struct{}

func (SopsDecrypter) Decrypt(data []byte) ([]byte, error) {
	return sops.DecryptYAML(data)
}

type noopDecrypter struct{}

func (noopDecrypter) Decrypt(data []byte) ([]byte, error) {
	return data, nil
}
