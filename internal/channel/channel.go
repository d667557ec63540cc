package channel

// Channel identifiers for the external surfaces the platform speaks to.
const (
	WhatsApp = "whatsapp"
	Web      = "web"
	Shopify  = "shopify"
	Magento  = "magento"
)

// VoiceCapable reports whether outbound sends on the channel should enqueue a
// speech-synthesis follow-up.
func VoiceCapable(ch string) bool {
	return ch == WhatsApp
}
