// Package seal encrypts save payloads with AES-256-CBC.
//
// Keys are UTF-8 strings right-padded with spaces to 32 bytes (longer
// keys are truncated), IVs are exactly 16 bytes, plaintext is PKCS#7
// padded, and ciphertext travels as standard base64 text.
package seal
