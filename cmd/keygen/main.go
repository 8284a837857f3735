// Command keygen generates the RSA keypair the service signs tokens with.
// The private key goes to the path cmd/api reads (IAM_RSA_PRIVATE_KEY); the
// public half is written alongside it for convenience.
package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"flag"
	"log"
	"os"
)

func main() {
	log.SetFlags(0)
	var (
		out  = flag.String("out", "keys/rsa", "Path for the private key (public key gets a .pub suffix)")
		bits = flag.Int("bits", 4096, "RSA key size in bits")
	)
	flag.Parse()

	key, err := rsa.GenerateKey(rand.Reader, *bits)
	if err != nil {
		log.Fatalf("generate key: %v", err)
	}

	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	if err := os.WriteFile(*out, privPEM, 0o600); err != nil {
		log.Fatalf("write private key: %v", err)
	}

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		log.Fatalf("marshal public key: %v", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubDER,
	})
	if err := os.WriteFile(*out+".pub", pubPEM, 0o644); err != nil {
		log.Fatalf("write public key: %v", err)
	}

	log.Printf("wrote %s and %s.pub", *out, *out)
}
