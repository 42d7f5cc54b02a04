// ABOUTME: User-facing message texts shown by the session controller
// ABOUTME: Localized in Thai to match the assistant persona

package session

const (
	// Greeting is the assistant's opening line.
	Greeting = "สวัสดีครับ ผมเฟิง มีสิ่งใดให้เราได้ร่วมไตร่ตรองกันในวันนี้"

	// MsgUnavailable is shown when a submit arrives while not connected.
	MsgUnavailable = "ไม่สามารถเชื่อมต่อกับเซิร์ฟเวอร์ได้ในขณะนี้ (connection unavailable)"

	// MsgInterrupted replaces the answer when the connection drops mid-request.
	MsgInterrupted = "ขออภัยครับ การเชื่อมต่อขาดหายระหว่างประมวลผล กรุณาส่งคำถามอีกครั้ง"

	// MsgTimeout replaces the answer when the request deadline passes.
	MsgTimeout = "ขออภัยครับ ระบบใช้เวลาตอบนานเกินไป กรุณาลองใหม่อีกครั้ง"

	// MsgGenericFailure is shown for unexpected failures while handling a response.
	MsgGenericFailure = "ขออภัยครับ เกิดข้อผิดพลาดร้ายแรง"

	// MsgEmptyAnswer stands in for a final response without answer text.
	MsgEmptyAnswer = "ขออภัยครับ มีการตอบกลับที่ผิดพลาด"
)
