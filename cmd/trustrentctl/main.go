package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"trustrent/cmd/internal/passphrase"
	"trustrent/config"
	"trustrent/crypto"
	"trustrent/rpc"
)

const (
	defaultKeystorePassEnv = "TRUSTRENT_KEYSTORE_PASS"
	rpcTokenEnv            = "TRUSTRENT_RPC_TOKEN"
	rpcURLEnv              = "TRUSTRENT_RPC_URL"
	defaultRPCURL          = "http://localhost:8645"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	if len(args) < 1 {
		usage(stdout)
		return errors.New("command required")
	}
	switch args[0] {
	case "keygen":
		return runKeygen(args[1:], stdout)
	case "address":
		return runAddress(args[1:], stdout)
	case "token":
		return runToken(args[1:], stdout)
	case "call":
		return runCall(args[1:], stdout)
	case "help", "-h", "--help":
		usage(stdout)
		return nil
	default:
		usage(stdout)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: trustrentctl <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  keygen   --out <path>                  generate an encrypted keystore and print its address")
	fmt.Fprintln(w, "  address  --keystore <path>             print the address stored in a keystore")
	fmt.Fprintln(w, "  token    --address <addr>|--keystore   mint a bearer token for the RPC server")
	fmt.Fprintln(w, "  call     <method> [params-json]        invoke a JSON-RPC method")
}

func runKeygen(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	out := fs.String("out", "", "Output path for the keystore file")
	passEnv := fs.String("pass-env", defaultKeystorePassEnv, "Environment variable containing the keystore passphrase")
	force := fs.Bool("force", false, "Overwrite an existing keystore file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*out) == "" {
		return errors.New("--out is required")
	}
	if _, err := os.Stat(*out); err == nil && !*force {
		return fmt.Errorf("keystore %s already exists; use --force to overwrite", *out)
	}
	pass, err := passphrase.NewSource(*passEnv, "keystore passphrase", passphrase.WithConfirmation()).Get()
	if err != nil {
		return err
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	if err := crypto.SaveToKeystore(*out, key, pass); err != nil {
		return fmt.Errorf("write keystore: %w", err)
	}
	fmt.Fprintln(stdout, crypto.FormatAddress(key.PubKey().Address().Array()))
	return nil
}

func runAddress(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("address", flag.ContinueOnError)
	keystorePath := fs.String("keystore", "", "Path to the keystore file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*keystorePath) == "" {
		return errors.New("--keystore is required")
	}
	addr, err := crypto.KeystoreAddress(*keystorePath)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, crypto.FormatAddress(addr))
	fmt.Fprintln(stdout, "0x"+crypto.HexAddress(addr))
	return nil
}

func runToken(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	address := fs.String("address", "", "Caller address (rent1... or 0x...)")
	keystorePath := fs.String("keystore", "", "Keystore whose address becomes the token subject")
	secretEnv := fs.String("secret-env", config.DefaultSecretEnv, "Environment variable holding the HMAC secret")
	issuer := fs.String("issuer", "", "Token issuer claim")
	audience := fs.String("audience", "", "Token audience claim")
	ttl := fs.Duration("ttl", time.Hour, "Token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var subject [20]byte
	switch {
	case strings.TrimSpace(*address) != "":
		addr, err := crypto.ParseAddress(*address)
		if err != nil {
			return err
		}
		subject = addr
	case strings.TrimSpace(*keystorePath) != "":
		addr, err := crypto.KeystoreAddress(*keystorePath)
		if err != nil {
			return err
		}
		subject = addr
	default:
		return errors.New("--address or --keystore is required")
	}
	secret, err := passphrase.NewSource(*secretEnv, "rpc jwt secret").Get()
	if err != nil {
		return err
	}
	token, err := rpc.IssueToken(secret, subject, *issuer, *audience, *ttl, time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, token)
	return nil
}

func defaultEndpoint() string {
	if v := strings.TrimSpace(os.Getenv(rpcURLEnv)); v != "" {
		return v
	}
	return defaultRPCURL
}

func runCall(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("call", flag.ContinueOnError)
	endpoint := fs.String("rpc", defaultEndpoint(), "JSON-RPC endpoint")
	token := fs.String("token", os.Getenv(rpcTokenEnv), "Bearer token for mutating methods")
	idemKey := fs.String("idempotency-key", "", "Idempotency-Key header for safe retries")
	timeout := fs.Duration("timeout", 10*time.Second, "Request timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) < 1 {
		return errors.New("method is required")
	}
	method := rest[0]
	params := []json.RawMessage{}
	if len(rest) > 1 {
		raw := json.RawMessage(rest[1])
		if !json.Valid(raw) {
			return errors.New("params must be valid JSON")
		}
		params = append(params, raw)
	}
	result, err := callRPC(&http.Client{Timeout: *timeout}, *endpoint, *token, *idemKey, method, params)
	if err != nil {
		return err
	}
	printJSONResult(stdout, result)
	return nil
}

func callRPC(client *http.Client, endpoint, token, idemKey, method string, params []json.RawMessage) (json.RawMessage, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token = strings.TrimSpace(token); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if idemKey = strings.TrimSpace(idemKey); idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *rpc.RPCError   `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("failed to decode response from node: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("error from node (%d): %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	return rpcResp.Result, nil
}

func printJSONResult(w io.Writer, result json.RawMessage) {
	if len(result) == 0 {
		fmt.Fprintln(w, "No result.")
		return
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, result, "", "  "); err != nil {
		fmt.Fprintln(w, string(result))
		return
	}
	fmt.Fprintln(w, buf.String())
}
