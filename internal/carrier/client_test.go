package carrier

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func testClient(fn roundTripFunc) *Client {
	cfg := Config{
		PostURL:  "https://vipp.test/postar",
		PrintURL: "https://vipp.test/imprimir",
		Profile:  Profile{IDPerfil: "77", Token: "segredo"},
		Contract: Contract{NumeroContrato: "9912", CartaoPostagem: "0067", CodigoAdministrativo: "123"},
	}
	return NewClientWithHTTP(cfg, &http.Client{Transport: fn})
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

var testRecipient = Recipient{
	Nome: "Ana Lima", Cep: "01310100", Endereco: "Av Paulista 1000",
	Cidade: "Sao Paulo", Uf: "SP",
}

func TestPostShipment_RequestShape(t *testing.T) {
	client := testClient(func(r *http.Request) (*http.Response, error) {
		if r.Method != http.MethodPost || r.URL.Host != "vipp.test" || r.URL.Path != "/postar" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL)
		}
		body, _ := io.ReadAll(r.Body)
		for _, want := range []string{
			`"PerfilVipp":{"IdPerfil":"77","Token":"segredo"}`,
			`"NumeroContrato":"9912"`,
			`"Destinatario":{"Nome":"Ana Lima","Cep":"01310100"`,
			`"Servico":{"ServicoECT":"03220"}`,
			`"Volumes":[{}]`,
		} {
			if !strings.Contains(string(body), want) {
				t.Errorf("body missing %s: %s", want, body)
			}
		}
		return jsonResponse(http.StatusOK, `{"StatusPostagem":"Valida","Volumes":[{"Etiqueta":"PN123456789BR"}]}`), nil
	})

	code, err := client.PostShipment(context.Background(), testRecipient, "03220", "")
	if err != nil {
		t.Fatal(err)
	}
	if code != "PN123456789BR" {
		t.Errorf("expected tracking code, got %q", code)
	}
}

func TestPostShipment_InvoiceIncludedWhenGiven(t *testing.T) {
	client := testClient(func(r *http.Request) (*http.Response, error) {
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"NotasFiscais":[{"Numero":"NF-1"}]`) {
			t.Errorf("expected invoice in body: %s", body)
		}
		return jsonResponse(http.StatusOK, `{"Volumes":[{"Etiqueta":"PN1BR"}]}`), nil
	})

	if _, err := client.PostShipment(context.Background(), testRecipient, "03220", "NF-1"); err != nil {
		t.Fatal(err)
	}
}

func TestPostShipment_ListaErrosRejects(t *testing.T) {
	client := testClient(func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK,
			`{"ListaErros":[{"Descricao":"CEP invalido"},{"Descricao":"contrato suspenso"}],"StatusPostagem":"Invalida"}`), nil
	})

	_, err := client.PostShipment(context.Background(), testRecipient, "03220", "")

	var postErr *PostError
	if !errors.As(err, &postErr) {
		t.Fatalf("expected PostError, got %T: %v", err, err)
	}
	for _, want := range []string{"CEP invalido", "contrato suspenso"} {
		if !strings.Contains(postErr.Error(), want) {
			t.Errorf("expected %q in message, got %q", want, postErr.Error())
		}
	}
}

func TestPostShipment_InvalidStatusRejects(t *testing.T) {
	client := testClient(func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"StatusPostagem":"Invalida","Volumes":[{"Etiqueta":"PN1BR"}]}`), nil
	})

	_, err := client.PostShipment(context.Background(), testRecipient, "03220", "")

	var postErr *PostError
	if !errors.As(err, &postErr) {
		t.Fatalf("expected PostError, got %T: %v", err, err)
	}
	if !strings.Contains(postErr.Error(), "Invalida") {
		t.Errorf("expected status in message, got %q", postErr.Error())
	}
}

func TestPostShipment_MissingEtiquetaRejects(t *testing.T) {
	client := testClient(func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"StatusPostagem":"Valida","Volumes":[{}]}`), nil
	})

	_, err := client.PostShipment(context.Background(), testRecipient, "03220", "")

	var postErr *PostError
	if !errors.As(err, &postErr) {
		t.Fatalf("expected PostError, got %T: %v", err, err)
	}
	if !strings.Contains(postErr.Error(), "sem etiqueta") {
		t.Errorf("unexpected message %q", postErr.Error())
	}
}

func TestPostShipment_NonOKCarriesBody(t *testing.T) {
	client := testClient(func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusServiceUnavailable, `manutencao programada`), nil
	})

	_, err := client.PostShipment(context.Background(), testRecipient, "03220", "")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusServiceUnavailable || !strings.Contains(apiErr.Body, "manutencao") {
		t.Errorf("unexpected error %v", apiErr)
	}
}

func TestPrintLabels_ReturnsSheetBytes(t *testing.T) {
	client := testClient(func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/imprimir" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"Etiquetas":["PN1BR","PN2BR"]`) {
			t.Errorf("expected codes in body: %s", body)
		}
		return jsonResponse(http.StatusOK, "%PDF-1.4 conteudo"), nil
	})

	sheet, err := client.PrintLabels(context.Background(), []string{"PN1BR", "PN2BR"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(sheet), "%PDF") {
		t.Errorf("expected pdf bytes, got %q", sheet)
	}
}

func TestPrintLabels_NonOKFails(t *testing.T) {
	client := testClient(func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusBadRequest, `etiqueta desconhecida`), nil
	})

	_, err := client.PrintLabels(context.Background(), []string{"XX"})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
}
