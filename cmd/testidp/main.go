// Command testidp runs a standalone SAML identity provider for manual
// testing of the relying-party flow.
// Usage: go run ./cmd/testidp -sp-metadata http://localhost:9080/saml2/pnet
package main

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/xml"
	"flag"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"net/url"
	"time"

	"github.com/crewjam/saml/samlidp"
)

func main() {
	port := flag.Int("port", 8443, "Port to listen on")
	spMetadataURL := flag.String("sp-metadata", "http://localhost:9080/saml2/pnet", "Relying party metadata URL to register")
	flag.Parse()

	key, cert, err := generateSelfSignedCert()
	if err != nil {
		log.Fatalf("Failed to generate certificate: %v", err)
	}

	store := &samlidp.MemoryStore{}
	baseURL, _ := url.Parse(fmt.Sprintf("http://localhost:%d", *port))

	idpServer, err := samlidp.New(samlidp.Options{
		URL:         *baseURL,
		Key:         key,
		Certificate: cert,
		Store:       store,
	})
	if err != nil {
		log.Fatalf("Failed to create IdP server: %v", err)
	}

	// Seed a test user once the server accepts requests.
	go func() {
		time.Sleep(100 * time.Millisecond)
		if err := addUser(fmt.Sprintf("http://localhost:%d", *port), "testuser", "password"); err != nil {
			log.Fatalf("Failed to add test user: %v", err)
		}
		log.Println("Added test user: testuser / password")
	}()

	// Register the relying party from its published metadata.
	go func() {
		time.Sleep(2 * time.Second)
		if err := registerRelyingParty(*spMetadataURL, fmt.Sprintf("http://localhost:%d", *port)); err != nil {
			log.Printf("Warning: failed to register relying party from %s: %v", *spMetadataURL, err)
			log.Println("Register it manually once the relying party serves its metadata")
		} else {
			log.Printf("Registered relying party from %s", *spMetadataURL)
		}
	}()

	log.Printf("Test IdP starting on http://localhost:%d", *port)
	log.Printf("  Metadata: http://localhost:%d/metadata", *port)
	log.Printf("  SSO:      http://localhost:%d/sso", *port)
	log.Println()
	log.Println("Test credentials: testuser / password")

	if err := http.ListenAndServe(fmt.Sprintf(":%d", *port), idpServer); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// addUser creates the user via HTTP PUT so the password gets hashed by
// the IdP.
func addUser(baseURL, username, password string) error {
	user := samlidp.User{
		Name:              username,
		PlaintextPassword: &password,
		Email:             username + "@example.com",
		CommonName:        username,
		GivenName:         username,
		Surname:           "Test",
	}

	body, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}

	request, err := http.NewRequest(http.MethodPut, baseURL+"/users/"+username, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 5 * time.Second}
	response, err := client.Do(request)
	if err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode >= 400 {
		return fmt.Errorf("put user status: %d", response.StatusCode)
	}
	return nil
}

// registerRelyingParty fetches the relying party's SP metadata and
// registers it as a service with the IdP.
func registerRelyingParty(metadataURL, idpBaseURL string) error {
	response, err := http.Get(metadataURL)
	if err != nil {
		return fmt.Errorf("fetch metadata: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("metadata response status: %d", response.StatusCode)
	}

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(response.Body); err != nil {
		return fmt.Errorf("read metadata: %w", err)
	}

	var descriptor struct {
		EntityID string `xml:"entityID,attr"`
	}
	if err := xml.Unmarshal(buf.Bytes(), &descriptor); err != nil {
		return fmt.Errorf("parse metadata: %w", err)
	}

	request, err := http.NewRequest(http.MethodPut, idpBaseURL+"/services/"+url.PathEscape(descriptor.EntityID), bytes.NewReader(buf.Bytes()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	request.Header.Set("Content-Type", "application/xml")

	client := &http.Client{Timeout: 5 * time.Second}
	putResponse, err := client.Do(request)
	if err != nil {
		return fmt.Errorf("register relying party: %w", err)
	}
	defer putResponse.Body.Close()

	if putResponse.StatusCode >= 400 {
		return fmt.Errorf("register relying party status: %d", putResponse.StatusCode)
	}
	return nil
}

func generateSelfSignedCert() (*rsa.PrivateKey, *x509.Certificate, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, nil, fmt.Errorf("generate key: %w", err)
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			CommonName:   "Test IdP",
			Organization: []string{"Test"},
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, nil, fmt.Errorf("create certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, nil, fmt.Errorf("parse certificate: %w", err)
	}
	return key, cert, nil
}
