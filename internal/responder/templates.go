package responder

import "github.com/lewisedginton/sdr_chatbot/internal/intent"

// Placeholders replaced with persona fields before a template is used.
const (
	placeholderName    = "{nome}"
	placeholderCompany = "{empresa}"
)

// GenericTemplate answers intents without a template list.
const GenericTemplate = "Entendo. Como posso te ajudar especificamente com isso?"

var templates = map[intent.Label][]string{
	intent.Greeting: {
		"Olá! Aqui é o {nome} da {empresa}. Como posso ajudá-lo hoje?",
		"Oi! Que bom falar com você. Sou o {nome}, em que posso te auxiliar?",
		"Olá! {nome} aqui. Vamos conversar sobre como podemos te ajudar?",
	},
	intent.Product: {
		"Oferecemos soluções completas de automação de vendas e CRM. Nosso foco é otimizar processos comerciais. Gostaria de saber mais sobre alguma área específica?",
		"Somos especialistas em consultoria empresarial e automação de vendas. Qual é o principal desafio da sua empresa atualmente?",
		"Trabalhamos com soluções personalizadas para cada negócio. Me conte um pouco sobre sua operação atual?",
	},
	intent.Pricing: {
		"Nossos valores são competitivos e variam conforme a solução. Para te dar uma proposta precisa, posso conhecer melhor suas necessidades?",
		"O investimento depende do escopo do projeto. Que tal agendarmos uma conversa para eu te apresentar as opções?",
		"Trabalhamos com diferentes pacotes. Qual o tamanho da sua operação de vendas?",
	},
	intent.Interest: {
		"Que ótimo! Fico feliz com seu interesse. Para personalizar nossa proposta, me conta qual seu principal objetivo?",
		"Perfeito! Vou te passar mais detalhes. Qual área da sua empresa você gostaria de otimizar primeiro?",
		"Excelente! Que tal agendarmos uma demonstração? Posso te mostrar casos de sucesso similares ao seu.",
	},
	intent.Question: {
		"Claro! Estou aqui para esclarecer tudo. Qual aspecto específico você gostaria que eu explicasse?",
		"Sem problemas! Qual dúvida posso resolver para você?",
		"Perfeito! Vou te explicar detalhadamente. O que gostaria de saber?",
	},
	intent.Scheduling: {
		"Ótima ideia! Vamos agendar sim. Que dia e horário funcionam melhor para você?",
		"Perfeito! Prefere uma reunião presencial ou online? Tenho disponibilidade esta semana.",
		"Vamos marcar! Quanto tempo você tem disponível para conversarmos?",
	},
	intent.Objection: {
		"Entendo totalmente sua preocupação. Posso te mostrar como outros clientes chegaram à mesma conclusão e o que mudou depois?",
		"Faz sentido pensar nisso. O que seria mais importante para você avaliar antes de decidir?",
		"Compreendo. Muitos clientes pensavam o mesmo no início. Posso te contar como resolvemos isso para eles?",
	},
	intent.Farewell: {
		"Foi um prazer conversar com você! Qualquer dúvida, estarei à disposição.",
		"Obrigado pelo contato! Fico no aguardo do nosso próximo contato.",
		"Até logo! Espero ter ajudado. Estarei aqui quando precisar.",
	},
}

var insights = []string{
	"Baseado na nossa experiência com casos similares, posso te ajudar com isso.",
	"Já trabalhamos com situações parecidas e temos soluções eficazes.",
	"Isso é algo que vemos frequentemente no mercado. Podemos resolver juntos.",
}

var fallbacks = []string{
	"Interessante pergunta! Me deixa pensar na melhor forma de te ajudar com isso.",
	"Entendo sua questão. Posso te passar mais informações sobre isso em uma conversa?",
	"Boa pergunta! Que tal agendarmos um tempo para conversarmos com mais detalhes?",
}

// Templates returns a copy of the template list for label, or nil.
func Templates(label intent.Label) []string {
	list, ok := templates[label]
	if !ok {
		return nil
	}
	return append([]string(nil), list...)
}

// Insights returns a copy of the insight sentences.
func Insights() []string { return append([]string(nil), insights...) }

// Fallbacks returns a copy of the apology texts used when a turn fails.
func Fallbacks() []string { return append([]string(nil), fallbacks...) }
