// Package carrier talks to the Vipp postal middleware. One POST registers a
// parcel and yields its tracking code; a second endpoint renders the
// combined label sheet PDF for a set of codes.
package carrier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// statusRejected is the StatusPostagem literal the middleware uses for a
// refused shipment.
const statusRejected = "Invalida"

// Profile identifies the deployment to the middleware.
type Profile struct {
	IDPerfil string `json:"IdPerfil"`
	Token    string `json:"Token"`
}

// Contract carries the postal contract the shipments run under.
type Contract struct {
	NumeroContrato       string `json:"NumeroContrato"`
	CartaoPostagem       string `json:"CartaoPostagem"`
	CodigoAdministrativo string `json:"CodigoAdministrativo"`
}

// Recipient is the Destinatario block of a shipment.
type Recipient struct {
	Nome     string `json:"Nome"`
	Email    string `json:"Email,omitempty"`
	Telefone string `json:"Telefone,omitempty"`
	CpfCnpj  string `json:"CpfCnpj,omitempty"`
	Cep      string `json:"Cep"`
	Endereco string `json:"Endereco,omitempty"`
	Cidade   string `json:"Cidade,omitempty"`
	Uf       string `json:"Uf,omitempty"`
}

type Service struct {
	ServicoECT string `json:"ServicoECT"`
}

type Invoice struct {
	Numero string `json:"Numero,omitempty"`
}

// Volume is one parcel. The middleware fills Etiqueta on the response side.
type Volume struct {
	Peso     float64 `json:"Peso,omitempty"`
	Etiqueta string  `json:"Etiqueta,omitempty"`
}

// Shipment is the posting payload.
type Shipment struct {
	PerfilVipp   Profile   `json:"PerfilVipp"`
	ContratoEct  Contract  `json:"ContratoEct"`
	Destinatario Recipient `json:"Destinatario"`
	Servico      Service   `json:"Servico"`
	NotasFiscais []Invoice `json:"NotasFiscais"`
	Volumes      []Volume  `json:"Volumes"`
}

type postResponse struct {
	ListaErros     []responseError `json:"ListaErros"`
	StatusPostagem string          `json:"StatusPostagem"`
	Volumes        []Volume        `json:"Volumes"`
}

type responseError struct {
	Descricao string `json:"Descricao"`
}

type printRequest struct {
	PerfilVipp Profile  `json:"PerfilVipp"`
	Etiquetas  []string `json:"Etiquetas"`
}

// APIError is a non-2xx middleware response, body preserved for diagnosis.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("transportadora: status %d: %s", e.StatusCode, e.Body)
}

// PostError is a rejection reported inside a successful HTTP response:
// explicit error descriptions, an invalid posting status, or a response
// carrying no tracking code at all.
type PostError struct {
	Status   string
	Messages []string
}

func (e *PostError) Error() string {
	if len(e.Messages) > 0 {
		return "postagem rejeitada: " + strings.Join(e.Messages, "; ")
	}
	if e.Status != "" {
		return "postagem rejeitada: status " + e.Status
	}
	return "postagem sem etiqueta na resposta"
}

type Config struct {
	PostURL  string
	PrintURL string
	Profile  Profile
	Contract Contract
}

type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	return NewClientWithHTTP(cfg, &http.Client{Timeout: 60 * time.Second})
}

func NewClientWithHTTP(cfg Config, httpClient *http.Client) *Client {
	return &Client{cfg: cfg, httpClient: httpClient}
}

// PostShipment registers one parcel and returns its tracking code. The
// middleware reports failures three ways: ListaErros entries, the literal
// "Invalida" posting status, and a response with no Etiqueta; all three are
// surfaced as a PostError.
func (c *Client) PostShipment(ctx context.Context, recipient Recipient, serviceCode, invoiceNumber string) (string, error) {
	shipment := Shipment{
		PerfilVipp:   c.cfg.Profile,
		ContratoEct:  c.cfg.Contract,
		Destinatario: recipient,
		Servico:      Service{ServicoECT: serviceCode},
		NotasFiscais: []Invoice{},
		Volumes:      []Volume{{}},
	}
	if invoiceNumber != "" {
		shipment.NotasFiscais = append(shipment.NotasFiscais, Invoice{Numero: invoiceNumber})
	}

	var out postResponse
	if err := c.post(ctx, c.cfg.PostURL, shipment, &out); err != nil {
		return "", err
	}

	if len(out.ListaErros) > 0 {
		messages := make([]string, 0, len(out.ListaErros))
		for _, e := range out.ListaErros {
			messages = append(messages, e.Descricao)
		}
		return "", &PostError{Status: out.StatusPostagem, Messages: messages}
	}
	if out.StatusPostagem == statusRejected {
		return "", &PostError{Status: out.StatusPostagem}
	}
	if len(out.Volumes) == 0 || out.Volumes[0].Etiqueta == "" {
		return "", &PostError{}
	}

	return out.Volumes[0].Etiqueta, nil
}

// PrintLabels renders the combined label sheet for the given tracking codes
// and returns the PDF bytes.
func (c *Client) PrintLabels(ctx context.Context, codes []string) ([]byte, error) {
	body, err := json.Marshal(printRequest{PerfilVipp: c.cfg.Profile, Etiquetas: codes})
	if err != nil {
		return nil, fmt.Errorf("failed to encode print request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.PrintURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build print request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("print request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read print response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	return raw, nil
}

func (c *Client) post(ctx context.Context, url string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
